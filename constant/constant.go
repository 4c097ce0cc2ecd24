package constant

// Set at link time with -ldflags "-X github.com/xeptore/sermondl/constant.Version=...".
var (
	Version     = "dev"
	CompileTime = "unknown"
)
