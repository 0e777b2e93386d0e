package main_test

import (
	"os"
	"strings"
	"testing"
)

func readFile(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return string(data)
}

// composeServices はdocker-compose.ymlのservices配下をサービス名ごとの本文に分割する。
// 2スペースインデントのキーをサービスの開始とみなす。
func composeServices(t *testing.T) map[string]string {
	t.Helper()
	services := make(map[string]string)
	var current string
	inServices := false
	for _, line := range strings.Split(readFile(t, "docker-compose.yml"), "\n") {
		switch {
		case line == "services:":
			inServices = true
			continue
		case line != "" && !strings.HasPrefix(line, " "):
			inServices = false
		}
		if !inServices {
			continue
		}
		if strings.HasPrefix(line, "  ") && !strings.HasPrefix(line, "   ") && strings.HasSuffix(strings.TrimSpace(line), ":") &&
			!strings.HasPrefix(strings.TrimSpace(line), "#") {
			current = strings.TrimSuffix(strings.TrimSpace(line), ":")
			continue
		}
		if current != "" {
			services[current] += line + "\n"
		}
	}
	return services
}

func requireService(t *testing.T, services map[string]string, name string) string {
	t.Helper()
	body, ok := services[name]
	if !ok {
		t.Fatalf("docker-compose.yml should define service %q", name)
	}
	return body
}

func TestDockerfileMultiStageBuild(t *testing.T) {
	content := readFile(t, "Dockerfile")

	if !strings.Contains(content, "FROM golang:") {
		t.Error("Dockerfile should contain a Go builder stage (FROM golang:)")
	}

	// 最終ステージはdistroless
	var lastFrom string
	for _, line := range strings.Split(content, "\n") {
		if trimmed := strings.TrimSpace(line); strings.HasPrefix(trimmed, "FROM ") {
			lastFrom = trimmed
		}
	}
	if !strings.Contains(lastFrom, "gcr.io/distroless") {
		t.Errorf("final stage should be distroless, got: %s", lastFrom)
	}
}

func TestDockerfileRunsCollegeConnect(t *testing.T) {
	content := readFile(t, "Dockerfile")

	tests := []struct {
		want   string
		reason string
	}{
		{"-o /out/collegeconnect", "build a binary named collegeconnect"},
		{`ENTRYPOINT ["/usr/local/bin/collegeconnect"]`, "use the binary as entrypoint"},
		{`CMD ["serve"]`, "default to the serve command"},
		{`"healthcheck"]`, "probe itself with the healthcheck command"},
		{"USER nonroot", "run as a non-root user"},
	}
	for _, tt := range tests {
		if !strings.Contains(content, tt.want) {
			t.Errorf("Dockerfile should %s (missing %q)", tt.reason, tt.want)
		}
	}
}

func TestDockerComposeServices(t *testing.T) {
	services := composeServices(t)

	commands := map[string]string{
		"migrate": `command: ["migrate"]`,
		"api":     `command: ["serve"]`,
		"worker":  `command: ["worker"]`,
	}
	for name, cmd := range commands {
		if body := requireService(t, services, name); !strings.Contains(body, cmd) {
			t.Errorf("service %q should run %s", name, cmd)
		}
	}
	if db := requireService(t, services, "db"); !strings.Contains(db, "image: postgres:") {
		t.Error("db service should use the PostgreSQL image")
	}
}

// api と worker はマイグレーション完了後にのみ起動する。
func TestDockerComposeMigrateRunsFirst(t *testing.T) {
	services := composeServices(t)

	migrate := requireService(t, services, "migrate")
	if !strings.Contains(migrate, "condition: service_healthy") {
		t.Error("migrate should wait for a healthy db")
	}
	for _, name := range []string{"api", "worker"} {
		body := requireService(t, services, name)
		if !strings.Contains(body, "migrate:") || !strings.Contains(body, "condition: service_completed_successfully") {
			t.Errorf("service %q should depend on migrate completing successfully", name)
		}
	}
}

// Redisはプロファイル指定時のみ起動し、既定構成の依存にはならない。
func TestDockerComposeRedisIsOptional(t *testing.T) {
	services := composeServices(t)

	redis := requireService(t, services, "redis")
	if !strings.Contains(redis, `profiles: ["redis"]`) {
		t.Error("redis should only start with the redis profile")
	}
	for name, body := range services {
		if name != "redis" && strings.Contains(body, "redis:") {
			t.Errorf("service %q must not depend on the optional redis service", name)
		}
	}
}

// 外部へ出られるのはworkerのみ。
func TestDockerComposeNetworks(t *testing.T) {
	content := readFile(t, "docker-compose.yml")
	if !strings.Contains(content, "internal: true") {
		t.Error("docker-compose.yml should define an internal network (internal: true)")
	}

	services := composeServices(t)
	for name, body := range services {
		hasExternal := strings.Contains(body, "- external")
		if hasExternal != (name == "worker") {
			t.Errorf("service %q external network = %v, want only worker", name, hasExternal)
		}
	}
	if api := requireService(t, services, "api"); !strings.Contains(api, "- public") {
		t.Error("api should join the public network")
	}
}
