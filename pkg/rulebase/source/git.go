package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"drivelogic-hq/reasoner/pkg/config"
)

// OpCommit is the Event.Op reported when a pulled commit touched the rule
// base.
const OpCommit = "COMMIT"

// Commit describes the checked out revision of a GitSource.
type Commit struct {
	SHA     string    `json:"sha"`
	Author  string    `json:"author"`
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
	Branch  string    `json:"branch"`
}

// GitSource loads the rule base from a clone of a Git repository and
// watches the remote by polling. The rule and taxonomy paths are relative
// to the repository root.
type GitSource struct {
	cfg          config.GitConfig
	rulesPath    string
	taxonomyPath string
	auth         GitAuth
	logger       *slog.Logger

	mu   sync.Mutex
	repo *gogit.Repository
}

// NewGitSource validates cfg and prepares a source. Nothing is cloned
// until the first Load or Watch.
func NewGitSource(cfg config.GitConfig, rulesPath, taxonomyPath string, logger *slog.Logger) (*GitSource, error) {
	if cfg.Repository == "" {
		return nil, errors.New("repository URL cannot be empty")
	}
	if cfg.Branch == "" {
		return nil, errors.New("branch cannot be empty")
	}
	if rulesPath == "" {
		return nil, errors.New("rules path cannot be empty")
	}
	auth, err := NewGitAuth(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create git auth: %w", err)
	}
	if cfg.LocalPath == "" {
		cfg.LocalPath = filepath.Join(os.TempDir(), "drivelogic-rules")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GitSource{
		cfg:          cfg,
		rulesPath:    rulesPath,
		taxonomyPath: taxonomyPath,
		auth:         auth,
		logger:       logger.With("component", "rulebase.source", "repository", cfg.Repository),
	}, nil
}

// Load clones the repository if needed and reads the rule base from the
// working tree. It does not pull; Watch does.
func (s *GitSource) Load(ctx context.Context) (*Bundle, error) {
	if err := s.open(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	taxPath := ""
	if s.taxonomyPath != "" {
		taxPath = filepath.Join(s.cfg.LocalPath, s.taxonomyPath)
	}
	b, err := loadBundle(ctx, filepath.Join(s.cfg.LocalPath, s.rulesPath), taxPath)
	if err != nil {
		return nil, err
	}

	head, _ := s.headLocked()
	s.logger.Info("loaded rule base",
		"path", s.rulesPath,
		"commit", shortSHA(head),
		"rule_count", len(b.Rules.Rules),
	)
	return b, nil
}

// Watch polls the remote every PollInterval and reports commits that
// changed the rule or taxonomy file. Commits touching neither are pulled
// but not reported.
func (s *GitSource) Watch(ctx context.Context) (<-chan Event, error) {
	if err := s.open(ctx); err != nil {
		return nil, err
	}

	interval := s.cfg.PollInterval
	if interval <= 0 {
		interval = config.DefaultGitPollInterval
	}

	events := make(chan Event, 1)
	go func() {
		defer close(events)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ev, ok, err := s.poll(ctx)
				if err != nil {
					s.logger.Error("failed to pull rule repository", "error", err)
					continue
				}
				if !ok {
					continue
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				default:
					// A reload is already pending; it will read the latest tree.
				}
			}
		}
	}()

	s.logger.Info("watching rule repository",
		"branch", s.cfg.Branch,
		"poll_interval", interval,
	)
	return events, nil
}

// Head returns the checked out commit.
func (s *GitSource) Head() (*Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repo == nil {
		return nil, errors.New("repository not cloned")
	}
	ref, err := s.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}
	c, err := s.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}
	return &Commit{
		SHA:     c.Hash.String(),
		Author:  c.Author.Name,
		Time:    c.Author.When,
		Message: c.Message,
		Branch:  s.cfg.Branch,
	}, nil
}

// open clones the repository, or opens an existing clone at LocalPath.
func (s *GitSource) open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repo != nil {
		return nil
	}

	if s.cfg.CleanOnStart {
		if err := os.RemoveAll(s.cfg.LocalPath); err != nil {
			return fmt.Errorf("failed to clean existing clone: %w", err)
		}
	}

	if _, err := os.Stat(filepath.Join(s.cfg.LocalPath, ".git")); err == nil {
		repo, err := gogit.PlainOpen(s.cfg.LocalPath)
		if err != nil {
			return fmt.Errorf("failed to open existing clone: %w", err)
		}
		s.repo = repo
		s.logger.Debug("opened existing clone", "local_path", s.cfg.LocalPath)
		return nil
	}

	if err := os.MkdirAll(s.cfg.LocalPath, 0o755); err != nil {
		return fmt.Errorf("failed to create clone directory: %w", err)
	}
	auth, err := s.auth.Method()
	if err != nil {
		return fmt.Errorf("failed to get git auth: %w", err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	repo, err := gogit.PlainCloneContext(ctx, s.cfg.LocalPath, false, &gogit.CloneOptions{
		URL:           s.cfg.Repository,
		Auth:          auth,
		ReferenceName: plumbing.NewBranchReferenceName(s.cfg.Branch),
		SingleBranch:  s.cfg.Depth > 0,
		Depth:         s.cfg.Depth,
	})
	if err != nil {
		return fmt.Errorf("failed to clone repository: %w", err)
	}
	s.repo = repo

	s.logger.Info("cloned rule repository",
		"branch", s.cfg.Branch,
		"local_path", s.cfg.LocalPath,
		"auth", s.auth.Type(),
		"duration", time.Since(start),
	)
	return nil
}

// poll pulls once. ok is set when the new commits touched the rule base.
func (s *GitSource) poll(ctx context.Context) (Event, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from, err := s.headLocked()
	if err != nil {
		return Event{}, false, err
	}

	wt, err := s.repo.Worktree()
	if err != nil {
		return Event{}, false, fmt.Errorf("failed to get worktree: %w", err)
	}
	auth, err := s.auth.Method()
	if err != nil {
		return Event{}, false, fmt.Errorf("failed to get git auth: %w", err)
	}

	pullCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	err = wt.PullContext(pullCtx, &gogit.PullOptions{
		RemoteName:    "origin",
		ReferenceName: plumbing.NewBranchReferenceName(s.cfg.Branch),
		Auth:          auth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return Event{}, false, fmt.Errorf("failed to pull: %w", err)
	}

	to, err := s.headLocked()
	if err != nil {
		return Event{}, false, err
	}
	if from == to {
		return Event{}, false, nil
	}

	changed, err := s.changedFiles(from, to)
	if err != nil {
		return Event{}, false, err
	}
	s.logger.Info("pulled rule repository",
		"from", shortSHA(from),
		"to", shortSHA(to),
		"changed_files", len(changed),
	)

	for _, f := range changed {
		if s.tracks(f) {
			return Event{Path: f, Op: OpCommit, Time: time.Now()}, true, nil
		}
	}
	s.logger.Debug("commits did not touch the rule base", "files", changed)
	return Event{}, false, nil
}

func (s *GitSource) headLocked() (string, error) {
	ref, err := s.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

// changedFiles lists paths that differ between two commits.
func (s *GitSource) changedFiles(fromSHA, toSHA string) ([]string, error) {
	from, err := s.repo.CommitObject(plumbing.NewHash(fromSHA))
	if err != nil {
		return nil, fmt.Errorf("failed to get commit %s: %w", shortSHA(fromSHA), err)
	}
	to, err := s.repo.CommitObject(plumbing.NewHash(toSHA))
	if err != nil {
		return nil, fmt.Errorf("failed to get commit %s: %w", shortSHA(toSHA), err)
	}
	fromTree, err := from.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}
	toTree, err := to.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}

	changes, err := fromTree.Diff(toTree)
	if err != nil {
		return nil, fmt.Errorf("failed to diff trees: %w", err)
	}
	files := make([]string, 0, len(changes))
	for _, c := range changes {
		if c.To.Name != "" {
			files = append(files, c.To.Name)
		} else {
			files = append(files, c.From.Name)
		}
	}
	return files, nil
}

// tracks reports whether a repository path is the rule or taxonomy file.
func (s *GitSource) tracks(name string) bool {
	for _, p := range []string{s.rulesPath, s.taxonomyPath} {
		if p != "" && path.Clean(filepath.ToSlash(p)) == name {
			return true
		}
	}
	return false
}

func (s *GitSource) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.Timeout)
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
