package resolver

// Config captures the runtime controls the resolver needs.
type Config struct {
	// Remote is the name of the configured remote, normally "origin".
	Remote string

	// MainlineRef is the reference merged into the branch, normally
	// "origin/main".
	MainlineRef string

	// ConflictFile is the single path the auto-resolution policy may resolve.
	ConflictFile string

	// AutoOurs enables automatic ours-resolution when ConflictFile is the only
	// conflicted path.
	AutoOurs bool
}

const (
	defaultRemote       = "origin"
	defaultMainlineRef  = "origin/main"
	defaultConflictFile = "app.py"
)

func (c Config) remote() string {
	if c.Remote == "" {
		return defaultRemote
	}
	return c.Remote
}

func (c Config) mainlineRef() string {
	if c.MainlineRef == "" {
		return defaultMainlineRef
	}
	return c.MainlineRef
}

func (c Config) conflictFile() string {
	if c.ConflictFile == "" {
		return defaultConflictFile
	}
	return c.ConflictFile
}
