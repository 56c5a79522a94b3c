package resolver_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/codemaphq/branch-sync/internal/git"
	"github.com/codemaphq/branch-sync/internal/resolver"
)

type fakeRepository struct {
	clean         bool
	hasRemote     bool
	currentBranch string
	unmergedPaths []string

	currentBranchErr error
	fetchErr         error
	checkoutErr      error
	pullErr          error
	mergeErr         error
	unmergedErr      error
	takeOursErr      error
	addErr           error
	commitErr        error

	// ops records every call in order, so tests can assert that nothing was
	// mutated before a precondition failed.
	ops       []string
	checkouts []string
	takeOurs  []string
	adds      []string
	commits   []string
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{clean: true, hasRemote: true, currentBranch: "feature-x"}
}

func (f *fakeRepository) record(op string) {
	f.ops = append(f.ops, op)
}

func (f *fakeRepository) IsClean(context.Context) (bool, error) {
	f.record("status")
	return f.clean, nil
}

func (f *fakeRepository) HasRemote(_ context.Context, name string) (bool, error) {
	f.record("remote " + name)
	return f.hasRemote, nil
}

func (f *fakeRepository) CurrentBranch(context.Context) (string, error) {
	f.record("current-branch")
	if f.currentBranchErr != nil {
		return "", f.currentBranchErr
	}
	return f.currentBranch, nil
}

func (f *fakeRepository) Fetch(_ context.Context, remote string) error {
	f.record("fetch " + remote)
	return f.fetchErr
}

func (f *fakeRepository) Checkout(_ context.Context, branch string) error {
	f.record("checkout " + branch)
	f.checkouts = append(f.checkouts, branch)
	return f.checkoutErr
}

func (f *fakeRepository) PullFastForward(_ context.Context, remote, branch string) error {
	f.record(fmt.Sprintf("pull %s %s", remote, branch))
	return f.pullErr
}

func (f *fakeRepository) MergeBranch(_ context.Context, ref string) error {
	f.record("merge " + ref)
	return f.mergeErr
}

func (f *fakeRepository) UnmergedPaths(context.Context) ([]string, error) {
	f.record("unmerged-paths")
	if f.unmergedErr != nil {
		return nil, f.unmergedErr
	}
	return f.unmergedPaths, nil
}

func (f *fakeRepository) TakeOurs(_ context.Context, path string) error {
	f.record("take-ours " + path)
	f.takeOurs = append(f.takeOurs, path)
	return f.takeOursErr
}

func (f *fakeRepository) Add(_ context.Context, path string) error {
	f.record("add " + path)
	f.adds = append(f.adds, path)
	return f.addErr
}

func (f *fakeRepository) Commit(_ context.Context, message string) error {
	f.record("commit")
	f.commits = append(f.commits, message)
	return f.commitErr
}

func mutations(repo *fakeRepository) []string {
	var muts []string
	for _, op := range repo.ops {
		switch op {
		case "status", "current-branch", "unmerged-paths":
			continue
		}
		if len(op) >= 6 && op[:6] == "remote" {
			continue
		}
		muts = append(muts, op)
	}
	return muts
}

var _ = Describe("Resolver", func() {
	var (
		ctx  context.Context
		cfg  resolver.Config
		repo *fakeRepository
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfg = resolver.Config{AutoOurs: true}
		repo = newFakeRepository()
	})

	It("yields Clean when the merge has no conflicts", func() {
		res := resolver.New(cfg, repo, nil)

		result, err := res.Run(ctx, "feature-x")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Outcome).To(Equal(resolver.OutcomeClean))
		Expect(result.Branch).To(Equal("feature-x"))
		Expect(result.MainlineRef).To(Equal("origin/main"))
		Expect(result.Outcome.ExitCode()).To(Equal(0))
		Expect(repo.ops).To(Equal([]string{
			"status",
			"remote origin",
			"fetch origin",
			"checkout feature-x",
			"pull origin feature-x",
			"merge origin/main",
		}))
	})

	It("falls back to the current branch when none is given", func() {
		repo.currentBranch = "feature-y"
		res := resolver.New(cfg, repo, nil)

		result, err := res.Run(ctx, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Branch).To(Equal("feature-y"))
		Expect(repo.checkouts).To(ConsistOf("feature-y"))
	})

	It("normalizes refs/heads prefixes on the branch argument", func() {
		res := resolver.New(cfg, repo, nil)

		result, err := res.Run(ctx, "refs/heads/feature-x")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Branch).To(Equal("feature-x"))
	})

	It("fails with a usage error on a detached HEAD and no argument", func() {
		repo.currentBranch = ""
		res := resolver.New(cfg, repo, nil)

		_, err := res.Run(ctx, "")
		var usageErr *resolver.UsageError
		Expect(errors.As(err, &usageErr)).To(BeTrue())
		Expect(resolver.IsUsage(err)).To(BeTrue())
		Expect(mutations(repo)).To(BeEmpty())
	})

	It("rejects branch names with forbidden characters", func() {
		res := resolver.New(cfg, repo, nil)

		_, err := res.Run(ctx, "feat~ure")
		Expect(resolver.IsUsage(err)).To(BeTrue())
		Expect(mutations(repo)).To(BeEmpty())
	})

	It("stops before any mutation when the working tree is dirty", func() {
		repo.clean = false
		res := resolver.New(cfg, repo, nil)

		_, err := res.Run(ctx, "feature-x")
		var precondErr *resolver.PreconditionError
		Expect(errors.As(err, &precondErr)).To(BeTrue())
		Expect(precondErr.Reason).To(ContainSubstring("uncommitted changes"))
		Expect(mutations(repo)).To(BeEmpty())
	})

	It("stops before any mutation when the remote is missing", func() {
		repo.hasRemote = false
		res := resolver.New(cfg, repo, nil)

		_, err := res.Run(ctx, "feature-x")
		var precondErr *resolver.PreconditionError
		Expect(errors.As(err, &precondErr)).To(BeTrue())
		Expect(precondErr.Reason).To(ContainSubstring("origin"))
		Expect(mutations(repo)).To(BeEmpty())
	})

	It("honors a configured remote and mainline ref", func() {
		cfg.Remote = "upstream"
		cfg.MainlineRef = "upstream/master"
		res := resolver.New(cfg, repo, nil)

		result, err := res.Run(ctx, "feature-x")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.MainlineRef).To(Equal("upstream/master"))
		Expect(repo.ops).To(ContainElement("fetch upstream"))
		Expect(repo.ops).To(ContainElement("merge upstream/master"))
	})

	It("surfaces a checkout failure as a CheckoutError", func() {
		repo.checkoutErr = errors.New("pathspec did not match")
		res := resolver.New(cfg, repo, nil)

		_, err := res.Run(ctx, "feature-x")
		var checkoutErr *resolver.CheckoutError
		Expect(errors.As(err, &checkoutErr)).To(BeTrue())
		Expect(checkoutErr.Branch).To(Equal("feature-x"))
	})

	It("surfaces a non-fast-forwardable pull as a DivergedBranchError", func() {
		repo.pullErr = fmt.Errorf("pull: %w", git.ErrNotFastForward)
		res := resolver.New(cfg, repo, nil)

		_, err := res.Run(ctx, "feature-x")
		var divergedErr *resolver.DivergedBranchError
		Expect(errors.As(err, &divergedErr)).To(BeTrue())
		Expect(divergedErr.Branch).To(Equal("feature-x"))
		Expect(repo.ops).NotTo(ContainElement("merge origin/main"))
	})

	It("auto-resolves when app.py is the sole conflict", func() {
		repo.mergeErr = fmt.Errorf("merge: %w", git.ErrMergeConflict)
		repo.unmergedPaths = []string{"app.py"}
		res := resolver.New(cfg, repo, nil)

		result, err := res.Run(ctx, "feature-y")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Outcome).To(Equal(resolver.OutcomeAutoResolved))
		Expect(result.Outcome.ExitCode()).To(Equal(0))
		Expect(repo.takeOurs).To(Equal([]string{"app.py"}))
		Expect(repo.adds).To(Equal([]string{"app.py"}))
		Expect(repo.commits).To(HaveLen(1))
		Expect(repo.commits[0]).To(ContainSubstring("feature-y"))
		Expect(repo.commits[0]).To(ContainSubstring("app.py"))
	})

	It("resolves only the configured conflict file", func() {
		cfg.ConflictFile = "generated/schema.sql"
		repo.mergeErr = fmt.Errorf("merge: %w", git.ErrMergeConflict)
		repo.unmergedPaths = []string{"generated/schema.sql"}
		res := resolver.New(cfg, repo, nil)

		result, err := res.Run(ctx, "feature-x")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Outcome).To(Equal(resolver.OutcomeAutoResolved))
		Expect(repo.takeOurs).To(Equal([]string{"generated/schema.sql"}))
	})

	It("leaves a multi-file conflict untouched and reports pending", func() {
		repo.mergeErr = fmt.Errorf("merge: %w", git.ErrMergeConflict)
		repo.unmergedPaths = []string{"app.py", "config.yaml"}
		res := resolver.New(cfg, repo, nil)

		result, err := res.Run(ctx, "feature-z")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Outcome).To(Equal(resolver.OutcomeConflictPending))
		Expect(result.Outcome.ExitCode()).To(Equal(2))
		Expect(result.UnmergedPaths).To(Equal([]string{"app.py", "config.yaml"}))
		Expect(repo.takeOurs).To(BeEmpty())
		Expect(repo.adds).To(BeEmpty())
		Expect(repo.commits).To(BeEmpty())
	})

	It("reports pending when the sole conflict is a different file", func() {
		repo.mergeErr = fmt.Errorf("merge: %w", git.ErrMergeConflict)
		repo.unmergedPaths = []string{"config.yaml"}
		res := resolver.New(cfg, repo, nil)

		result, err := res.Run(ctx, "feature-x")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Outcome).To(Equal(resolver.OutcomeConflictPending))
		Expect(repo.takeOurs).To(BeEmpty())
		Expect(repo.commits).To(BeEmpty())
	})

	It("never auto-resolves when the policy is disabled", func() {
		cfg.AutoOurs = false
		repo.mergeErr = fmt.Errorf("merge: %w", git.ErrMergeConflict)
		repo.unmergedPaths = []string{"app.py"}
		res := resolver.New(cfg, repo, nil)

		result, err := res.Run(ctx, "feature-x")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Outcome).To(Equal(resolver.OutcomeConflictPending))
		Expect(repo.takeOurs).To(BeEmpty())
		Expect(repo.commits).To(BeEmpty())
	})

	It("propagates merge failures that are not conflicts", func() {
		repo.mergeErr = errors.New("fatal: refusing to merge unrelated histories")
		res := resolver.New(cfg, repo, nil)

		_, err := res.Run(ctx, "feature-x")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("unrelated histories"))
		Expect(repo.ops).NotTo(ContainElement("unmerged-paths"))
	})

	It("propagates a failing ours-resolution step", func() {
		repo.mergeErr = fmt.Errorf("merge: %w", git.ErrMergeConflict)
		repo.unmergedPaths = []string{"app.py"}
		repo.commitErr = errors.New("hook rejected commit")
		res := resolver.New(cfg, repo, nil)

		_, err := res.Run(ctx, "feature-x")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("commit resolution"))
	})

	It("is idempotent after a clean run", func() {
		res := resolver.New(cfg, repo, nil)

		first, err := res.Run(ctx, "feature-x")
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Outcome).To(Equal(resolver.OutcomeClean))

		repo.ops = nil
		second, err := res.Run(ctx, "feature-x")
		Expect(err).NotTo(HaveOccurred())
		Expect(second.Outcome).To(Equal(resolver.OutcomeClean))
		Expect(repo.takeOurs).To(BeEmpty())
		Expect(repo.commits).To(BeEmpty())
	})

	It("maps error states to the failure exit code", func() {
		Expect(resolver.ExitCodeForError(errors.New("boom"))).To(Equal(resolver.ExitFailure))
		Expect(resolver.ExitCodeForError(nil)).To(Equal(resolver.ExitOK))
	})
})
