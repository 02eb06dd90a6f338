package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mntogether/curator/pkg/curator/domain"
	"github.com/mntogether/curator/pkg/curator/stager"
	"github.com/mntogether/curator/pkg/datastorage/repository"
)

var errBoom = errors.New("boom")

func TestRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Repository Suite")
}

var _ = Describe("Repository", func() {
	var (
		ctx  context.Context
		repo *repository.Repository
		db   *sqlx.DB
		mock sqlmock.Sqlmock
	)

	BeforeEach(func() {
		ctx = context.Background()
		mockDB, mockSQL, err := sqlmock.New()
		Expect(err).ToNot(HaveOccurred())
		db = sqlx.NewDb(mockDB, "sqlmock")
		mock = mockSQL
		repo = repository.New(db)
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	Describe("LoadOrganization", func() {
		It("reads an organization row", func() {
			rows := sqlmock.NewRows([]string{"id", "name", "description", "approved", "last_extracted_at"}).
				AddRow("org-1", "Casa Comunitaria", "Community resource center", true, nil)
			mock.ExpectQuery(`SELECT id, name, description, approved, last_extracted_at`).
				WithArgs("org-1").
				WillReturnRows(rows)

			org, err := repo.LoadOrganization(ctx, "org-1")
			Expect(err).ToNot(HaveOccurred())
			Expect(org.Name).To(Equal("Casa Comunitaria"))
			Expect(org.Approved).To(BeTrue())
		})

		It("wraps the underlying error", func() {
			mock.ExpectQuery(`SELECT id, name, description, approved, last_extracted_at`).
				WithArgs("missing").
				WillReturnError(sql.ErrNoRows)

			_, err := repo.LoadOrganization(ctx, "missing")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("LoadSources", func() {
		It("reads every source for an organization", func() {
			rows := sqlmock.NewRows([]string{"id", "organization_id", "url", "kind"}).
				AddRow("src-1", "org-1", "https://casa.org", "website").
				AddRow("src-2", "org-1", "https://facebook.com/casa", "social")
			mock.ExpectQuery(`SELECT id, organization_id, url, kind FROM sources`).
				WithArgs("org-1").
				WillReturnRows(rows)

			sources, err := repo.LoadSources(ctx, "org-1")
			Expect(err).ToNot(HaveOccurred())
			Expect(sources).To(HaveLen(2))
			Expect(sources[1].Kind).To(Equal("social"))
		})
	})

	Describe("LoadStaleOrganizations", func() {
		It("selects approved organizations past the staleness threshold", func() {
			rows := sqlmock.NewRows([]string{"id"}).AddRow("org-1").AddRow("org-2")
			mock.ExpectQuery(`SELECT id FROM organizations`).
				WithArgs(sqlmock.AnyArg()).
				WillReturnRows(rows)

			ids, err := repo.LoadStaleOrganizations(ctx, 24*time.Hour)
			Expect(err).ToNot(HaveOccurred())
			Expect(ids).To(ConsistOf("org-1", "org-2"))
		})
	})

	Describe("TouchLastExtracted", func() {
		It("updates the organization's timestamp", func() {
			mock.ExpectExec(`UPDATE organizations SET last_extracted_at`).
				WithArgs(sqlmock.AnyArg(), "org-1").
				WillReturnResult(sqlmock.NewResult(0, 1))

			Expect(repo.TouchLastExtracted(ctx, "org-1")).To(Succeed())
		})
	})

	Describe("WithTx", func() {
		It("commits when fn succeeds", func() {
			mock.ExpectBegin()
			mock.ExpectCommit()

			err := repo.WithTx(ctx, func(tx stager.Tx) error { return nil })
			Expect(err).ToNot(HaveOccurred())
		})

		It("rolls back when fn fails", func() {
			mock.ExpectBegin()
			mock.ExpectRollback()

			err := repo.WithTx(ctx, func(tx stager.Tx) error { return errBoom })
			Expect(err).To(MatchError(errBoom))
		})

		It("stages a create_post action end to end inside one transaction", func() {
			mock.ExpectBegin()
			mock.ExpectQuery(`SELECT b.id FROM sync_batches`).
				WithArgs("org-1").
				WillReturnError(sql.ErrNoRows)
			mock.ExpectExec(`INSERT INTO sync_batches`).
				WithArgs("batch-1", "org-1", "run summary", sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec(`INSERT INTO posts`).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec(`INSERT INTO post_sources`).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec(`INSERT INTO sync_proposals`).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit()

			err := repo.WithTx(ctx, func(tx stager.Tx) error {
				if _, err := tx.ExpirePendingBatch(ctx, "org-1"); err != nil {
					return err
				}
				if err := tx.InsertBatch(ctx, domain.SyncBatch{ID: "batch-1", OrganizationID: "org-1", Summary: "run summary"}); err != nil {
					return err
				}
				draft := domain.DraftPost{ID: "post-1", OrganizationID: "org-1", Title: "Weekly food pantry", SourceURLs: []string{"https://casa.org/food"}}
				if err := tx.InsertDraftPost(ctx, draft); err != nil {
					return err
				}
				if err := tx.InsertPostSource(ctx, "post-1", "https://casa.org/food"); err != nil {
					return err
				}
				return tx.InsertProposal(ctx, domain.SyncProposal{ID: "prop-1", BatchID: "batch-1", ResourceType: "curator", Operation: domain.OperationInsert, TargetType: domain.TargetPost, DraftEntityID: "post-1", Status: domain.ProposalPending})
			})
			Expect(err).ToNot(HaveOccurred())
		})
	})
})
