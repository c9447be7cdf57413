package gitenv

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/exploopio/ohmybug/pkg/core"
)

// Detect returns the CI environment: GitHub Actions first, then GitLab CI.
// It returns nil when neither is detected.
func Detect(logger core.Logger) Env {
	if logger == nil {
		logger = &core.NopLogger{}
	}

	if gh := NewGitHub(logger); gh.IsActive() {
		logger.Debug("gitenv: GitHub Actions environment detected")
		if gh.accessToken == "" {
			logger.Warn("GITHUB_TOKEN is not set, PR comments will not work")
		}
		return gh
	}

	gl, err := NewGitLab()
	if err != nil {
		logger.Warn("gitenv: %v", err)
	} else if gl.IsActive() {
		logger.Debug("gitenv: GitLab CI environment detected")
		if gl.client == nil {
			logger.Warn("GITLAB_TOKEN is not set, MR comments will not work")
		}
		return gl
	}
	return nil
}

// DetectFromDirectory returns the CI environment, or a LocalEnv read from
// dir's .git directory when no CI is detected.
func DetectFromDirectory(dir string, logger core.Logger) Env {
	if env := Detect(logger); env != nil {
		return env
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	gitDir := filepath.Join(abs, ".git")
	return NewLocalEnv(
		NormalizeGitURL(readRemoteURL(filepath.Join(gitDir, "config"))),
		readBranch(gitDir),
		readCommitSha(gitDir),
	)
}

// readRemoteURL returns the url of [remote "origin"] in a git config file.
func readRemoteURL(configPath string) string {
	file, err := os.Open(configPath)
	if err != nil {
		return ""
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	inOrigin := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "[") {
			inOrigin = line == `[remote "origin"]`
			continue
		}
		if !inOrigin {
			continue
		}
		if key, value, ok := strings.Cut(line, "="); ok && strings.TrimSpace(key) == "url" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func readHead(gitDir string) string {
	b, err := os.ReadFile(filepath.Join(gitDir, "HEAD"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// readBranch returns the checked out branch, or the short commit hash on a
// detached HEAD.
func readBranch(gitDir string) string {
	head := readHead(gitDir)
	if branch, ok := strings.CutPrefix(head, "ref: refs/heads/"); ok {
		return branch
	}
	if len(head) >= 7 && !strings.HasPrefix(head, "ref: ") {
		return head[:7]
	}
	return ""
}

// readCommitSha resolves HEAD through a loose ref or packed-refs.
func readCommitSha(gitDir string) string {
	head := readHead(gitDir)
	ref, ok := strings.CutPrefix(head, "ref: ")
	if !ok {
		return head
	}
	if b, err := os.ReadFile(filepath.Join(gitDir, filepath.FromSlash(ref))); err == nil {
		return strings.TrimSpace(string(b))
	}

	packed, err := os.ReadFile(filepath.Join(gitDir, "packed-refs"))
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(packed), "\n") {
		if sha, name, ok := strings.Cut(strings.TrimSpace(line), " "); ok && name == ref {
			return sha
		}
	}
	return ""
}

// NormalizeGitURL turns SSH and HTTPS remotes into host/owner/repo.
//
//	git@github.com:org/repo.git   -> github.com/org/repo
//	https://gitlab.com/org/repo/  -> gitlab.com/org/repo
func NormalizeGitURL(url string) string {
	if url == "" {
		return ""
	}
	url = strings.TrimPrefix(url, "ssh://")
	if rest, ok := strings.CutPrefix(url, "git@"); ok {
		url = strings.Replace(rest, ":", "/", 1)
	}
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")
	url = strings.TrimSuffix(url, "/")
	return strings.TrimSuffix(url, ".git")
}
