// Package timestamp resolves the reproducible build timestamp handed to
// every tool invocation of a build.
package timestamp

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-git/go-git/v5"

	"git.home.luguber.info/inful/texbuilder/internal/config"
	"git.home.luguber.info/inful/texbuilder/internal/errors"
	"git.home.luguber.info/inful/texbuilder/internal/process"
)

// Resolve returns the timestamp for mode, or nil when mode is none.
// dir locates the git repository for git mode; parents are searched.
func Resolve(mode config.TimestampMode, value, dir string) (*time.Time, error) {
	var (
		t   time.Time
		err error
	)
	switch mode {
	case config.TimestampNone, "":
		return nil, nil
	case config.TimestampFixed:
		t, err = config.ParseTimestampValue(value)
	case config.TimestampEnv:
		t, err = FromEnv()
	case config.TimestampGit:
		t, err = HeadCommitTime(dir)
	default:
		return nil, errors.ValidationFailed("build.timestamp", fmt.Sprintf("unsupported mode %q", mode))
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryConfig, errors.SeverityFatal, "failed to resolve build timestamp").
			WithContext("mode", string(mode))
	}
	return &t, nil
}

// FromEnv reads SOURCE_DATE_EPOCH from the environment.
func FromEnv() (time.Time, error) {
	raw, ok := os.LookupEnv(process.EnvSourceDateEpoch)
	if !ok || raw == "" {
		return time.Time{}, fmt.Errorf("%s is not set", process.EnvSourceDateEpoch)
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", process.EnvSourceDateEpoch, err)
	}
	return time.Unix(secs, 0).UTC(), nil
}

// HeadCommitTime returns the committer time of HEAD in the repository
// containing dir.
func HeadCommitTime(dir string) (time.Time, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return time.Time{}, fmt.Errorf("open repository: %w", err)
	}
	ref, err := repo.Head()
	if err != nil {
		return time.Time{}, fmt.Errorf("resolve HEAD: %w", err)
	}
	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return time.Time{}, fmt.Errorf("get commit object: %w", err)
	}
	return commit.Committer.When.UTC(), nil
}
