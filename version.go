package penaltysearch

// Version is set at build time with -ldflags "-X github.com/a-h/penaltysearch.Version=...".
var Version = "v1.3.3"
