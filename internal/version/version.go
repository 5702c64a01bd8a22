package version

// Set at build time:
// -ldflags "-X github.com/presale-labs/presale-store/internal/version.Version=v1.2.3 -X ...Commit=abc"
var (
	Version = "unknown"
	Commit  = "unknown"
)

func GetVersion() string {
	return Version
}

func GetCommit() string {
	return Commit
}
