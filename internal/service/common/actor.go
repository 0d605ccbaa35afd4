//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"fmt"
	"os"
	"os/user"

	"github.com/oshokin/nursery-speaker/internal/version"
)

// Actor identifies the device and account the speaker runs under.
type Actor struct {
	// Hostname is the machine name.
	Hostname string
	// Username is the account running the process.
	Username string
}

// DetectActor gathers host and user information so the command source can tell devices apart.
func DetectActor() (Actor, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return Actor{}, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return Actor{}, fmt.Errorf("current user: %w", err)
	}

	return Actor{
		Hostname: hostname,
		Username: currentUser.Username,
	}, nil
}

// UserAgent renders the User-Agent header for requests made by this actor.
func (a Actor) UserAgent() string {
	return fmt.Sprintf("%s (%s@%s)", version.UserAgent(), a.Username, a.Hostname)
}
