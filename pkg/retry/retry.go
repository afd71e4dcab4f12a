package retry

import (
	"time"
)

// Delayed calls f until it succeeds, waiting delay between attempts, for at
// most maxRetries attempts. The last error is returned when every attempt
// fails. IAM writes against a freshly created service account can race its
// propagation, so callers wrap those writes in this helper.
func Delayed(f func() error, maxRetries int, delay time.Duration) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		err = f()
		if err == nil {
			return nil
		}
		if i < maxRetries-1 {
			time.Sleep(delay)
		}
	}
	return err
}
