package plugins

import (
	"context"
	"strings"

	"github.com/suPer8Hu/personachat/internal/plugin"
)

const helloReply = "Plugin Response: Hello there!"

// SimpleCommand answers /hello without calling a model.
type SimpleCommand struct{}

func NewSimpleCommand() *SimpleCommand { return &SimpleCommand{} }

func (*SimpleCommand) ID() string          { return "simple_command" }
func (*SimpleCommand) Name() string        { return "Simple Command Example" }
func (*SimpleCommand) Description() string { return "Responds to the /hello command." }

func (*SimpleCommand) ProcessInput(ctx context.Context, text string, pc *plugin.Context) plugin.Result {
	if strings.ToLower(strings.TrimSpace(text)) != "/hello" {
		return plugin.Pass()
	}
	pc.BypassAI = true
	return plugin.Replace(helloReply)
}

func (*SimpleCommand) ProcessOutput(context.Context, string, *plugin.Context) plugin.Result {
	return plugin.Pass()
}
