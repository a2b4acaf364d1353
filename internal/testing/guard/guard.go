package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("MANDI_TEST_MODE") == "" {
			_ = os.Setenv("MANDI_TEST_MODE", "1")
		}
	})
}
