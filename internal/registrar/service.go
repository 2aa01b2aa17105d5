package registrar

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/misty-step/rootstock/internal/lib"
)

// ServiceRegistrationError reports a failed descriptor install.
type ServiceRegistrationError struct {
	Label string
	Err   error
}

func (e *ServiceRegistrationError) Error() string {
	return fmt.Sprintf("register service %q: %v", e.Label, e.Err)
}

func (e *ServiceRegistrationError) Unwrap() error {
	return e.Err
}

// Descriptor declares how launchd should run and supervise the service.
type Descriptor struct {
	Label      string
	Program    string
	Args       []string
	WorkingDir string
	StdoutLog  string
	StderrLog  string
	User       string
	KeepAlive  bool
}

// ProgramArguments is the full argv launchd passes to the process.
func (d Descriptor) ProgramArguments() []string {
	return append([]string{d.Program}, d.Args...)
}

func (d Descriptor) validate() error {
	if strings.TrimSpace(d.Label) == "" {
		return &lib.ValidationError{Field: "service label", Message: "must not be empty"}
	}
	if strings.TrimSpace(d.Program) == "" {
		return &lib.ValidationError{Field: "service program", Message: "must not be empty"}
	}
	if strings.TrimSpace(d.StdoutLog) == "" || strings.TrimSpace(d.StderrLog) == "" {
		return &lib.ValidationError{Field: "service logs", Message: "stdout and stderr log paths are required"}
	}
	return nil
}

// xmlEscape keeps labels, paths, and args from breaking the plist
// when they carry XML metacharacters.
func xmlEscape(value string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(value))
	return buf.String()
}

var plistTemplate = template.Must(template.New("plist").Funcs(template.FuncMap{"xml": xmlEscape}).Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>{{xml .Label}}</string>
	<key>ProgramArguments</key>
	<array>
{{- range .ProgramArguments}}
		<string>{{xml .}}</string>
{{- end}}
	</array>
	<key>WorkingDirectory</key>
	<string>{{xml .WorkingDir}}</string>
	<key>StandardOutPath</key>
	<string>{{xml .StdoutLog}}</string>
	<key>StandardErrorPath</key>
	<string>{{xml .StderrLog}}</string>
	<key>UserName</key>
	<string>{{xml .User}}</string>
	<key>RunAtLoad</key>
	<true/>
	<key>KeepAlive</key>
	<{{if .KeepAlive}}true{{else}}false{{end}}/>
</dict>
</plist>
`))

// Service renders descriptors into launchd property lists and installs
// them under the agents directory. Re-registration overwrites the prior
// descriptor; starting or stopping the job is launchd's business.
type Service struct {
	Logger    *slog.Logger
	AgentsDir string
}

func NewService(logger *slog.Logger, agentsDir string) *Service {
	return &Service{Logger: logger, AgentsDir: agentsDir}
}

// Register writes the descriptor's plist and creates any log
// directories it references. Returns the installed plist path.
func (s *Service) Register(ctx context.Context, d Descriptor) (string, error) {
	if err := d.validate(); err != nil {
		return "", err
	}
	if strings.TrimSpace(s.AgentsDir) == "" {
		return "", &lib.ValidationError{Field: "agents dir", Message: "must not be empty"}
	}

	for _, logPath := range []string{d.StdoutLog, d.StderrLog} {
		if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
			return "", &ServiceRegistrationError{Label: d.Label, Err: fmt.Errorf("create log dir: %w", err)}
		}
	}
	if err := os.MkdirAll(s.AgentsDir, 0o755); err != nil {
		return "", &ServiceRegistrationError{Label: d.Label, Err: fmt.Errorf("create agents dir: %w", err)}
	}

	var rendered bytes.Buffer
	if err := plistTemplate.Execute(&rendered, d); err != nil {
		return "", &ServiceRegistrationError{Label: d.Label, Err: fmt.Errorf("render plist: %w", err)}
	}

	plistPath := filepath.Join(s.AgentsDir, d.Label+".plist")
	if err := os.WriteFile(plistPath, rendered.Bytes(), 0o644); err != nil {
		return "", &ServiceRegistrationError{Label: d.Label, Err: err}
	}

	if s.Logger != nil {
		s.Logger.InfoContext(ctx, "service descriptor installed", "label", d.Label, "plist", plistPath)
	}
	return plistPath, nil
}
