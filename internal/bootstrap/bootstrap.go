// Package bootstrap seeds a fresh workspace with its standard layout.
package bootstrap

import (
	"context"
	_ "embed"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/lore/pkg/workspace"
)

//go:embed welcome.md
var welcomeNote string

// Directories created under the workspace root.
var Directories = []string{"config", "knowledge", "runs", "agents"}

// WelcomePath is the workspace-relative path of the seeded note.
const WelcomePath = "knowledge/Welcome.md"

// EnsureLayout creates the standard directories and the welcome note.
// Existing files are never overwritten.
func EnsureLayout(ctx context.Context, ws *workspace.Workspace, logger *logrus.Entry) error {
	for _, dir := range Directories {
		if err := ws.Mkdir(ctx, dir, true); err != nil {
			return err
		}
	}

	exists, err := ws.Exists(ctx, WelcomePath)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if _, err := ws.WriteFile(ctx, WelcomePath, welcomeNote, workspace.WriteOptions{}); err != nil {
		return err
	}
	logger.WithField("path", WelcomePath).Info("Seeded welcome note")
	return nil
}
