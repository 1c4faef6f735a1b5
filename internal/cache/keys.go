package cache

import "fmt"

func KeyStaticZip(url string) string {
	return fmt.Sprintf("zip:%s", url)
}
