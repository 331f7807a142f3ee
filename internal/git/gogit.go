// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package git

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	pkgerrors "github.com/tombee/apmkit/pkg/errors"
)

// GoGitExtractor reads metadata in-process with go-git. It needs no git
// binary and walks up from dir to find the repository.
type GoGitExtractor struct {
	// Remote is the remote whose URL is reported. Defaults to "origin",
	// then to the first configured remote.
	Remote string
}

// Metadata reads the remote URL, HEAD and the HEAD commit.
func (g *GoGitExtractor) Metadata(ctx context.Context, dir string) (map[string]string, error) {
	tags := make(map[string]string)
	repo, err := open(dir)
	if err != nil {
		return tags, err
	}

	if url := g.remoteURL(repo); url != "" {
		tags[RepositoryURL] = url
	}

	head, err := repo.Head()
	if err != nil {
		// An empty repository has no HEAD yet.
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return tags, nil
		}
		return tags, fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	tags[CommitSHA] = head.Hash().String()
	if head.Name().IsBranch() {
		tags[Branch] = head.Name().Short()
	}

	if err := ctx.Err(); err != nil {
		return tags, err
	}

	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return tags, pkgerrors.Wrapf(err, "failed to read commit %s", head.Hash())
	}
	tags[CommitMessage] = strings.TrimSpace(commit.Message)
	tags[CommitAuthorName] = commit.Author.Name
	tags[CommitAuthorEmail] = commit.Author.Email
	tags[CommitAuthorDate] = commit.Author.When.Format(time.RFC3339)
	tags[CommitCommitterName] = commit.Committer.Name
	tags[CommitCommitterEmail] = commit.Committer.Email
	tags[CommitCommitterDate] = commit.Committer.When.Format(time.RFC3339)
	return tags, nil
}

// WorkspacePath returns the root of the repository's worktree.
func (g *GoGitExtractor) WorkspacePath(_ context.Context, dir string) (string, error) {
	repo, err := open(dir)
	if err != nil {
		return "", err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", pkgerrors.Wrap(err, "failed to open worktree")
	}
	return wt.Filesystem.Root(), nil
}

func (g *GoGitExtractor) remoteURL(repo *gogit.Repository) string {
	name := g.Remote
	if name == "" {
		name = gogit.DefaultRemoteName
	}
	if remote, err := repo.Remote(name); err == nil {
		if urls := remote.Config().URLs; len(urls) > 0 {
			return urls[0]
		}
	}
	remotes, err := repo.Remotes()
	if err != nil {
		return ""
	}
	for _, r := range remotes {
		if urls := r.Config().URLs; len(urls) > 0 {
			return urls[0]
		}
	}
	return ""
}

func open(dir string) (*gogit.Repository, error) {
	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open repository at %s", dir)
	}
	return repo, nil
}
