package filestore_test

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jrsteele09/go-auth-refresher/credstore"
	"github.com/jrsteele09/go-auth-refresher/credstore/filestore"
	errs "github.com/jrsteele09/go-auth-refresher/internal/errors"
)

var _ = Describe("Store", func() {
	var (
		tmpDir string
		path   string
		store  *filestore.Store
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "filestore-test-*")
		Expect(err).NotTo(HaveOccurred())

		path = filepath.Join(tmpDir, "nested", "store.toml")
		store, err = filestore.New(path)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("New", func() {
		It("requires a path", func() {
			s, err := filestore.New("")
			Expect(err).To(HaveOccurred())
			Expect(s).To(BeNil())
		})
	})

	Describe("reading an empty store", func() {
		It("returns no keys when the file does not exist", func() {
			keys, err := store.Keys()
			Expect(err).NotTo(HaveOccurred())
			Expect(keys).To(BeEmpty())

			_, found, err := store.Get("anything")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeFalse())
		})
	})

	Describe("Set", func() {
		It("keeps insertion order across instances", func() {
			Expect(store.Set("x_refresh_token_abc", "R1")).To(Succeed())
			Expect(store.Set("other", "O")).To(Succeed())
			Expect(store.Set("granted_scopes_1", "S1")).To(Succeed())

			reopened, err := filestore.New(path)
			Expect(err).NotTo(HaveOccurred())

			keys, err := reopened.Keys()
			Expect(err).NotTo(HaveOccurred())
			Expect(keys).To(Equal([]string{"x_refresh_token_abc", "other", "granted_scopes_1"}))

			value, found, err := reopened.Get("other")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(value).To(Equal("O"))
		})

		It("overwrites in place", func() {
			Expect(store.Set("a", "1")).To(Succeed())
			Expect(store.Set("b", "2")).To(Succeed())
			Expect(store.Set("a", "3")).To(Succeed())

			keys, err := store.Keys()
			Expect(err).NotTo(HaveOccurred())
			Expect(keys).To(Equal([]string{"a", "b"}))

			value, _, err := store.Get("a")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("3"))
		})

		It("writes the file with owner-only permissions", func() {
			Expect(store.Set("a", "1")).To(Succeed())

			info, err := os.Stat(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))
		})

		It("fails while another process holds the lock", func() {
			Expect(os.MkdirAll(filepath.Dir(path), 0o700)).To(Succeed())
			other := flock.New(path + ".lock")
			locked, err := other.TryLock()
			Expect(err).NotTo(HaveOccurred())
			Expect(locked).To(BeTrue())
			defer other.Unlock()

			err = store.Set("a", "1")
			Expect(err).To(MatchError(errs.ErrStoreLocked))

			keys, err := store.Keys()
			Expect(err).NotTo(HaveOccurred())
			Expect(keys).To(BeEmpty())
		})
	})

	Describe("reads", func() {
		It("share the lock with other readers", func() {
			Expect(store.Set("a", "1")).To(Succeed())

			other := flock.New(path + ".lock")
			locked, err := other.TryRLock()
			Expect(err).NotTo(HaveOccurred())
			Expect(locked).To(BeTrue())
			defer other.Unlock()

			v, found, err := store.Get("a")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(v).To(Equal("1"))

			entries, err := store.Snapshot()
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))

			Expect(store.Set("b", "2")).To(MatchError(errs.ErrStoreLocked))
		})
	})

	Describe("Snapshot", func() {
		It("returns every entry in insertion order", func() {
			Expect(store.Set("b", "2")).To(Succeed())
			Expect(store.Set("a", "1")).To(Succeed())
			Expect(store.Set("b", "3")).To(Succeed())

			entries, err := store.Snapshot()
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(Equal([]credstore.Entry{
				{Key: "b", Value: "3"},
				{Key: "a", Value: "1"},
			}))
		})

		It("is empty when the file does not exist", func() {
			entries, err := store.Snapshot()
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(BeEmpty())
		})
	})

	Describe("Delete", func() {
		It("removes only the given key", func() {
			Expect(store.Set("a", "1")).To(Succeed())
			Expect(store.Set("b", "2")).To(Succeed())
			Expect(store.Delete("a")).To(Succeed())

			keys, err := store.Keys()
			Expect(err).NotTo(HaveOccurred())
			Expect(keys).To(Equal([]string{"b"}))
		})
	})

	Describe("corrupted files", func() {
		It("reports ErrStoreCorrupted", func() {
			Expect(os.MkdirAll(filepath.Dir(path), 0o700)).To(Succeed())
			Expect(os.WriteFile(path, []byte("this is [not toml"), 0o600)).To(Succeed())

			_, err := store.Keys()
			Expect(errs.Is(err, errs.ErrStoreCorrupted)).To(BeTrue())
		})
	})

	Describe("as a credential store backend", func() {
		It("finds the refresh token and scope keys", func() {
			Expect(store.Set("console_refresh_token", "R1")).To(Succeed())
			Expect(store.Set("console_granted_scopes", "read write")).To(Succeed())

			creds, err := credstore.New(store, nil, "").FindRefreshTokenAndScope()
			Expect(err).NotTo(HaveOccurred())
			Expect(creds.RefreshToken).To(Equal("R1"))
			Expect(creds.Scope).To(Equal("read write"))
		})
	})
})
