package cli

import (
	"os"

	"agentloop/internal/config"
	"agentloop/internal/domain"
	"agentloop/internal/router"
	"agentloop/internal/tokenizer"
)

// Function variables for dependency injection in tests.
// Default values are the real implementations; tests may temporarily swap them.
var (
	getenv             = os.Getenv
	configWriteDefault = config.WriteDefault
	configLoad         = config.Load
	loadCatalog        = router.LoadCatalog
	newTokenizer       = func(encoding, model string) (domain.Tokenizer, error) { return tokenizer.ForWindow(encoding, model) }
	setConfigValue     = configTree.set
)
