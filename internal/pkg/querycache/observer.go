// internal/pkg/querycache/observer.go
package querycache

// Observer receives cache events, keyed by operation name.
type Observer interface {
	Hit(operation string)
	Miss(operation string)
	Fetch(operation string)
	Superseded(operation string)
	FetchError(operation string)
}

type nopObserver struct{}

func (nopObserver) Hit(string)        {}
func (nopObserver) Miss(string)       {}
func (nopObserver) Fetch(string)      {}
func (nopObserver) Superseded(string) {}
func (nopObserver) FetchError(string) {}
