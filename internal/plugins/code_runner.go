package plugins

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/suPer8Hu/personachat/internal/plugin"
)

var codeBlockPattern = regexp.MustCompile("```(\\w+)?\\n([\\s\\S]+?)\\n```")

// pendingTTL is how long a detected block waits for /execute or /deny.
const pendingTTL = 30 * time.Minute

type pendingCode struct {
	code     string
	language string
	created  time.Time
}

// CodeRunner swaps fenced code in model replies for a confirmation prompt
// and runs the code once the user answers /execute <id>.
type CodeRunner struct {
	exec Executor
	// pending maps a generated id to the code awaiting confirmation.
	pending sync.Map
	now     func() time.Time
}

func NewCodeRunner(exec Executor) *CodeRunner {
	return &CodeRunner{exec: exec, now: time.Now}
}

// sweep drops entries nobody answered within pendingTTL.
func (r *CodeRunner) sweep() {
	cutoff := r.now().Add(-pendingTTL)
	r.pending.Range(func(k, v any) bool {
		if v.(pendingCode).created.Before(cutoff) {
			r.pending.Delete(k)
		}
		return true
	})
}

func (*CodeRunner) ID() string   { return "code_runner" }
func (*CodeRunner) Name() string { return "Code Runner" }
func (*CodeRunner) Description() string {
	return "Executes code blocks via /execute command after user confirmation"
}

func (r *CodeRunner) Init(host *plugin.Host) error {
	if r.exec != nil || host == nil || host.Config == nil {
		return nil
	}
	p := host.Config.Plugins
	if strings.TrimSpace(p.E2BAPIKey) == "" {
		log.Printf("[plugin] code_runner: no sandbox api key, code execution disabled")
		return nil
	}
	r.exec = NewSandboxClient(p.E2BBaseURL, p.E2BAPIKey)
	return nil
}

func (r *CodeRunner) ProcessInput(ctx context.Context, text string, pc *plugin.Context) plugin.Result {
	t := strings.TrimSpace(text)
	r.sweep()
	switch {
	case strings.HasPrefix(t, "/execute "):
		pc.BypassAI = true
		id := strings.TrimSpace(strings.TrimPrefix(t, "/execute "))
		v, ok := r.pending.LoadAndDelete(id)
		if !ok || r.exec == nil {
			return plugin.Replace("Invalid or expired execution ID.")
		}
		p := v.(pendingCode)
		res, err := r.exec.Run(ctx, p.code, p.language)
		if err != nil {
			return plugin.Replace(fmt.Sprintf("Code execution failed: %v", err))
		}
		return plugin.Replace(formatExecution(res))

	case strings.HasPrefix(t, "/deny "):
		pc.BypassAI = true
		r.pending.Delete(strings.TrimSpace(strings.TrimPrefix(t, "/deny ")))
		return plugin.Replace("Code execution cancelled.")
	}
	return plugin.Pass()
}

func (r *CodeRunner) ProcessOutput(ctx context.Context, text string, pc *plugin.Context) plugin.Result {
	if r.exec == nil || !codeBlockPattern.MatchString(text) {
		return plugin.Pass()
	}
	r.sweep()
	out := codeBlockPattern.ReplaceAllStringFunc(text, func(block string) string {
		m := codeBlockPattern.FindStringSubmatch(block)
		lang := m[1]
		if lang == "" {
			lang = "python"
		}
		id := uuid.NewString()
		r.pending.Store(id, pendingCode{code: m[2], language: lang, created: r.now()})
		return fmt.Sprintf("[Code block detected (ID: %s). Type /execute %s to run or /deny %s to cancel.]", id, id, id)
	})
	return plugin.Replace(out)
}

func formatExecution(res *Execution) string {
	var parts []string
	if res.Stdout != "" {
		parts = append(parts, "Output:\n"+res.Stdout)
	}
	if res.Stderr != "" {
		parts = append(parts, "Errors:\n"+res.Stderr)
	}
	if res.Error != "" {
		parts = append(parts, "Execution failed: "+res.Error)
	}
	if len(parts) == 0 {
		return "Code executed (no output)"
	}
	return strings.Join(parts, "\n\n")
}
