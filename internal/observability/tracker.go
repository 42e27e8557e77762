package observability

import (
	"time"

	"github.com/rollbar/rollbar-go"
)

// Tracker reports server-side failures to an external error service.
type Tracker interface {
	Report(err error, extras map[string]interface{})
	Flush()
}

type NopTracker struct{}

func (NopTracker) Report(error, map[string]interface{}) {}
func (NopTracker) Flush()                              {}

type RollbarTracker struct{}

var _ Tracker = RollbarTracker{}

// NewTracker returns a Rollbar-backed tracker when a token is configured.
func NewTracker(token, env, host, version string) Tracker {
	if token == "" {
		return NopTracker{}
	}
	rollbar.SetToken(token)
	rollbar.SetEnvironment(env)
	rollbar.SetServerHost(host)
	rollbar.SetCodeVersion(version)
	rollbar.SetServerRoot("github.com/HanTheDev/tutor-gateway")
	return RollbarTracker{}
}

func (RollbarTracker) Report(err error, extras map[string]interface{}) {
	rollbar.Error(err, extras)
}

func (RollbarTracker) Flush() {
	done := make(chan struct{})
	go func() {
		rollbar.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
	}
}
