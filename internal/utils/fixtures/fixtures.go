package fixtures

import (
	"embed"
)

//go:embed controller server
var FixturesFS embed.FS
