package salescout_test

import (
	"os"
	"strings"
	"testing"
)

func readFile(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("%s should exist: %v", name, err)
	}
	return string(data)
}

func TestDockerfileMultiStageBuild(t *testing.T) {
	content := readFile(t, "Dockerfile")

	if !strings.Contains(content, "FROM golang:") {
		t.Error("Dockerfile should contain a Go builder stage (FROM golang:)")
	}

	var lastFrom string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "FROM ") {
			lastFrom = trimmed
		}
	}
	if !strings.Contains(lastFrom, "gcr.io/distroless") {
		t.Errorf("final stage should be distroless, got: %s", lastFrom)
	}
}

func TestDockerfileBuildsSalescoutBinary(t *testing.T) {
	content := readFile(t, "Dockerfile")

	if !strings.Contains(content, "./cmd/salescout") {
		t.Error("Dockerfile should build ./cmd/salescout")
	}
	if !strings.Contains(content, `ENTRYPOINT ["/salescout"]`) {
		t.Error("Dockerfile should use the salescout binary as ENTRYPOINT")
	}
}

func TestDockerComposeServices(t *testing.T) {
	content := readFile(t, "docker-compose.yml")

	for _, svc := range []string{"db:", "migrate:", "api:", "worker:"} {
		if !strings.Contains(content, svc) {
			t.Errorf("docker-compose.yml should contain service %q", svc)
		}
	}
	if !strings.Contains(content, "postgres:") {
		t.Error("docker-compose.yml should use PostgreSQL image")
	}
	for _, cmd := range []string{`["serve"]`, `["worker"]`, `["migrate"]`} {
		if !strings.Contains(content, cmd) {
			t.Errorf("docker-compose.yml should run subcommand %s", cmd)
		}
	}
}

func TestDockerComposeOnlyWorkerReachesInternet(t *testing.T) {
	content := readFile(t, "docker-compose.yml")

	if !strings.Contains(content, "internal: true") {
		t.Error("docker-compose.yml should define an internal network (internal: true)")
	}

	// externalネットワークに接続するのはworkerのみ
	workerIdx := strings.Index(content, "\n  worker:")
	networksIdx := strings.Index(content, "\nnetworks:")
	if workerIdx < 0 || networksIdx < 0 {
		t.Fatal("worker service or top-level networks not found")
	}
	if strings.Count(content[:networksIdx], "- external") != 1 ||
		!strings.Contains(content[workerIdx:networksIdx], "- external") {
		t.Error("only the worker service should join the external network")
	}
}
