package artifacts

import _ "embed"

// Workspace artifacts

//go:embed global/settings.yaml
var GlobalSettings []byte

//go:embed global/syncignore
var SyncIgnore []byte
