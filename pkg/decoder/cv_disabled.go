//go:build !gocv

package decoder

import "fmt"

func newCV(Config) (Decoder, error) {
	return nil, fmt.Errorf("gocv decoder unavailable: binary built without the gocv tag")
}
