package indicators

import "fmt"

func errInsufficientSeries(got, want int) error {
	return fmt.Errorf("insufficient series length: got %d, need %d", got, want)
}
