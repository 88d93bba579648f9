// Command gitfsdemo exercises the library end to end against the
// in-memory reference store: it stages and commits files on a branch,
// writes a diverging tree through a detached filesystem, then three-way
// merges that tree into the branch and prints the outcome.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	memfs "github.com/go-git/go-memfs"
	"github.com/go-git/go-memfs/internal/logging"
	"github.com/go-git/go-memfs/plumbing"
	"github.com/go-git/go-memfs/store/memstore"
)

func main() {
	var (
		repoDir  = pflag.String("repo", "/demo", "repository directory name used in diagnostics")
		branch   = pflag.String("branch", "refs/heads/main", "branch reference the demo commits to")
		name     = pflag.String("name", "Demo User", "author and committer name")
		email    = pflag.String("email", "demo@example.com", "author and committer email")
		logLevel = pflag.String("log-level", "info", "log level: debug, info, warn or error")
	)
	pflag.Parse()

	log := logging.New(*logLevel, os.Stderr)
	if err := run(context.Background(), *repoDir, *branch, memfs.Identity{Name: *name, Email: *email}, log); err != nil {
		log.Error().Err(err).Msg("demo failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, repoDir, branch string, who memfs.Identity, log *logging.Logger) error {
	st := memstore.New(plumbing.SHA1)

	fs, err := memfs.New(ctx, repoDir, st, branch)
	if err != nil {
		return err
	}
	defer fs.Close()
	fs.SetLogger(log)

	// Base commit on the branch.
	if err := write(ctx, fs, "README.md", "demo\n"); err != nil {
		return err
	}
	if err := write(ctx, fs, "src/app.go", "package app\n\nvar Version = 1\n"); err != nil {
		return err
	}
	baseCommit, _, err := fs.WriteAndUpdateCommit(ctx, who, who, "initial import", false)
	if err != nil {
		return err
	}
	baseTree := treeOf(ctx, st, baseCommit)
	log.Info().Str("commit", baseCommit.String()).Msg("base committed")

	// "Theirs": a detached side branch editing the version line.
	theirs := memfs.NewDetached(repoDir, st, baseTree)
	defer theirs.Close()
	if err := write(ctx, theirs, "src/app.go", "package app\n\nvar Version = 2\n"); err != nil {
		return err
	}
	theirTree, _, err := theirs.WriteAndUpdateTree(ctx)
	if err != nil {
		return err
	}

	// "Ours": the branch keeps moving, touching the README only.
	if err := write(ctx, fs, "README.md", "demo\n\nNow with a merge.\n"); err != nil {
		return err
	}
	if _, _, err := fs.WriteAndUpdateCommit(ctx, who, who, "expand readme", false); err != nil {
		return err
	}

	res, err := fs.MergeTrees(ctx, baseTree, theirTree, memfs.MergeOptions{})
	if err != nil {
		return err
	}
	if !res.Clean {
		for _, path := range res.Conflicts.Paths() {
			log.Warn().Str("path", path).Msg("conflict")
		}
		return fmt.Errorf("merge produced %d conflicts", res.Conflicts.Len())
	}

	mergeCommit, _, err := fs.WriteAndUpdateCommit(ctx, who, who, "merge version bump", false)
	if err != nil {
		return err
	}
	log.Info().Str("commit", mergeCommit.String()).Str("tree", res.TreeID.String()).Msg("merged clean")

	return dump(ctx, fs, os.Stdout)
}

func write(ctx context.Context, fs *memfs.Filesystem, path, content string) error {
	h, err := fs.NewByteChannel(ctx, path, memfs.OpenOptions{Write: true, Create: true, Truncate: true})
	if err != nil {
		return err
	}
	if _, err := h.Write([]byte(content)); err != nil {
		h.Close()
		return err
	}
	return h.Close()
}

// dump prints the final content of every file reachable from the root.
func dump(ctx context.Context, fs *memfs.Filesystem, out io.Writer) error {
	return dumpDir(ctx, fs, "", out)
}

func dumpDir(ctx context.Context, fs *memfs.Filesystem, dir string, out io.Writer) error {
	stream, err := fs.NewDirectoryStream(ctx, dir, nil)
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		e, ok := stream.Next()
		if !ok {
			return nil
		}
		if e.Mode.IsDir() {
			if err := dumpDir(ctx, fs, e.Path, out); err != nil {
				return err
			}
			continue
		}
		h, err := fs.NewByteChannel(ctx, e.Path, memfs.OpenOptions{Read: true})
		if err != nil {
			return err
		}
		data, err := io.ReadAll(h)
		h.Close()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "--- %s ---\n%s", e.Path, data)
	}
}

func treeOf(ctx context.Context, st *memstore.Store, commit plumbing.ObjectID) plumbing.ObjectID {
	c, err := st.ReadCommit(ctx, commit)
	if err != nil {
		return plumbing.ZeroID
	}
	return c.Tree
}
