package refs

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ExecLister lists refs by running `git ls-remote`.
type ExecLister struct {
	Username string
	Password string
	// Git is the git binary. Defaults to "git".
	Git string
	// Timeout bounds each git invocation. Zero means no limit beyond ctx.
	Timeout time.Duration

	run func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

func (l *ExecLister) List(ctx context.Context, remote string) ([]Ref, error) {
	target, err := l.withCredentials(remote)
	if err != nil {
		return nil, err
	}

	bin := l.Git
	if bin == "" {
		bin = "git"
	}
	run := l.run
	if run == nil {
		run = runGit
	}

	ctx, cancel := boundedContext(ctx, l.Timeout)
	defer cancel()

	stdout, stderr, err := run(ctx, bin, "ls-remote", target, "refs/tags/*", "refs/heads/*")
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("git ls-remote %s: %w", remote, ctx.Err())
		}
		msg := strings.TrimSpace(string(stderr))
		if repositoryMissing(msg) {
			return nil, ErrRepositoryNotFound
		}
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("git ls-remote %s: %s", remote, msg)
	}
	return ParseLsRemote(string(stdout)), nil
}

// repositoryMissing recognizes git's report of a missing or invisible
// repository: "Repository not found" from the server, or the client's
// "fatal: repository '<url>' not found".
func repositoryMissing(stderr string) bool {
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if strings.Contains(line, "Repository not found") {
			return true
		}
		if strings.HasPrefix(line, "fatal: repository '") && strings.HasSuffix(line, "' not found") {
			return true
		}
	}
	return false
}

func (l *ExecLister) withCredentials(remote string) (string, error) {
	if l.Username == "" {
		return remote, nil
	}
	u, err := url.Parse(remote)
	if err != nil {
		return "", fmt.Errorf("parsing remote %q: %w", remote, err)
	}
	u.User = url.UserPassword(l.Username, l.Password)
	return u.String(), nil
}

func runGit(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
