// Package version identifies the node build and the wire protocol it speaks.
package version

const (
	// DemiurgeSemVer is the release of the node binary.
	DemiurgeSemVer = "0.1.0"

	// ProtocolVersion changes whenever the block, transaction or state
	// encodings change.
	ProtocolVersion = 1
)

var (
	// GitCommit is injected at build time with
	// -ldflags "-X github.com/demiurge-chain/demiurge/version.GitCommit=<sha>".
	GitCommit string

	// Version is what `demiurge version` and the startup log report: the
	// release, suffixed with the commit when one was injected.
	Version = withCommit(DemiurgeSemVer, GitCommit)
)

func withCommit(semver, commit string) string {
	if commit == "" {
		return semver
	}
	return semver + "-" + commit
}
