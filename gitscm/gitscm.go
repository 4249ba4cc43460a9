// Package gitscm implements hashwatch.HashFacility by walking a package's
// files on disk and hashing each one the way `git hash-object` does,
// skipping files matched by the repo root's and the package's own
// .gitignore. .gitignore files in other directories are not read.
package gitscm

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/joeycumines/hashwatch"
)

// matcher is the subset of hashwatch.GlobSet implementations gitscm can
// actually use to narrow a walk; the core's GlobSet interface deliberately
// exposes only Key(), so any concrete GlobSet a caller passes as HashSpec.
// Inputs must additionally satisfy this interface for narrowing to apply.
// GlobSet values that don't (a custom implementation from another facility)
// are treated as "match everything", the same as a nil GlobSet.
type matcher interface {
	Match(packageRelativePath string) (bool, error)
}

// Facility is the default hashwatch.HashFacility.
type Facility struct{}

// New returns a ready-to-use Facility.
func New() *Facility {
	return &Facility{}
}

// Hash implements hashwatch.HashFacility.
func (f *Facility) Hash(ctx context.Context, repoRoot, packagePath string, inputs hashwatch.GlobSet, telemetry hashwatch.TelemetrySink) (hashwatch.GitHashes, error) {
	emit(telemetry, "gitscm.hash.start")
	defer emit(telemetry, "gitscm.hash.done")

	pkgDir := filepath.Join(repoRoot, filepath.FromSlash(packagePath))

	ignore, err := loadIgnore(repoRoot, pkgDir)
	if err != nil {
		return nil, fmt.Errorf("gitscm: loading ignore rules: %w", err)
	}

	match, _ := inputs.(matcher)

	hashes := make(hashwatch.GitHashes)

	walkErr := filepath.WalkDir(pkgDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(repoRoot, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && (d.Name() == ".git" || ignore.MatchesPath(rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}
		if ignore.MatchesPath(rel) {
			return nil
		}

		pkgRel, err := filepath.Rel(pkgDir, p)
		if err != nil {
			return err
		}
		pkgRel = filepath.ToSlash(pkgRel)

		if match != nil {
			ok, err := match.Match(pkgRel)
			if err != nil {
				return fmt.Errorf("gitscm: matching %q against inputs: %w", pkgRel, err)
			}
			if !ok {
				return nil
			}
		}

		content, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		hashes[pkgRel] = blobHash(content)
		emit(telemetry, "gitscm.hash.file")
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	return hashes, nil
}

// blobHash reproduces `git hash-object`'s content-addressing scheme: the
// SHA-1 of a "blob <size>\x00" header followed by the raw file content.
// This is intentionally a stdlib-only computation; pulling in a full git
// plumbing library (go-git) for one hash primitive would drag in an object
// database and transport stack gitscm has no other use for.
func blobHash(content []byte) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// loadIgnore compiles the root .gitignore and, if distinct, the package's
// own .gitignore into one ruleset, plus an implicit ".git/" rule so the
// walk never descends into git's own metadata even for the root package.
func loadIgnore(repoRoot, pkgDir string) (*gitignore.GitIgnore, error) {
	var lines []string
	lines = append(lines, readLines(filepath.Join(repoRoot, ".gitignore"))...)
	if pkgDir != repoRoot {
		lines = append(lines, readLines(filepath.Join(pkgDir, ".gitignore"))...)
	}
	lines = append(lines, ".git/")
	return gitignore.CompileIgnoreLines(lines...)
}

func readLines(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

func emit(sink hashwatch.TelemetrySink, name string) {
	if sink != nil {
		sink.Event(name)
	}
}
