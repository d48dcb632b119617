package sandbox

import (
	"github.com/ChamsBouzaiene/autobuild/internal/workspace"
)

// GetDockerImage returns the image commands for projectType run in. A
// configured image always wins.
func GetDockerImage(projectType workspace.ProjectType, cfg Config) string {
	if cfg.DockerImage != "" {
		return cfg.DockerImage
	}

	switch projectType {
	case workspace.ProjectTypeGo:
		return "golang:1.24-alpine"
	case workspace.ProjectTypeNode:
		return "node:22-alpine"
	case workspace.ProjectTypePython:
		return "python:3.12-alpine"
	case workspace.ProjectTypeRust:
		return "rust:alpine"
	default:
		return "alpine:latest"
	}
}
