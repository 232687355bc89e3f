package services

import (
	"context"
	"time"

	"github.com/autodock-deploy/lib/sshx"
)

// RemoteRunner is the command channel the provisioning services share.
// *sshx.Client satisfies it; tests substitute fakes.
type RemoteRunner interface {
	Run(ctx context.Context, command string, timeout time.Duration) (sshx.CommandResult, error)
	RunSequence(ctx context.Context, commands []string, stopOnError bool) ([]sshx.CommandResult, error)
	Host() string
}

// aptGet carries the dpkg lock wait and non-interactive config options
// needed on a freshly booted host where unattended-upgrades may still
// hold the lock.
const aptGet = "sudo apt-get -o Dpkg::Lock::Timeout=120 -o Dpkg::Options::='--force-confdef' -o Dpkg::Options::='--force-confold'"
