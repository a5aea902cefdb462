package plugins

import "github.com/suPer8Hu/personachat/internal/plugin"

// Builtins is the compiled-in registration table, in chain order.
func Builtins() []plugin.Factory {
	return []plugin.Factory{
		func() plugin.Unit { return NewSimpleCommand() },
		func() plugin.Unit { return NewCodeRunner(nil) },
		func() plugin.Unit { return NewWebSearch(nil) },
		func() plugin.Unit { return NewRAGDocs() },
	}
}
