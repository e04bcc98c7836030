package lock

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestLock(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Lock Suite")
}

var _ = Describe("RedisLocker", func() {
	var (
		mock   redismock.ClientMock
		locker *RedisLocker
		ctx    context.Context
	)

	BeforeEach(func() {
		db, m := redismock.NewClientMock()
		mock = m
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		locker = NewRedisLocker(db, slogger).WithTokenSource(func() string { return "token-1" })
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	It("should acquire with SET NX and release with compare-and-delete", func() {
		// Given
		mock.ExpectSetNX("lock:withdrawal:m-1", "token-1", 30*time.Second).SetVal(true)
		mock.ExpectEval(releaseScript, []string{"lock:withdrawal:m-1"}, "token-1").SetVal(int64(1))

		// When
		release, acquired, err := locker.TryAcquire(ctx, "withdrawal:m-1", 30*time.Second)

		// Then
		Expect(err).NotTo(HaveOccurred())
		Expect(acquired).To(BeTrue())
		release()
	})

	It("should report a lock held elsewhere", func() {
		mock.ExpectSetNX("lock:settlement:scan", "token-1", time.Minute).SetVal(false)

		release, acquired, err := locker.TryAcquire(ctx, "settlement:scan", time.Minute)

		Expect(err).NotTo(HaveOccurred())
		Expect(acquired).To(BeFalse())
		Expect(release).To(BeNil())
	})

	It("should surface redis failures", func() {
		mock.ExpectSetNX("lock:settlement:scan", "token-1", time.Minute).SetErr(errors.New("connection refused"))

		_, acquired, err := locker.TryAcquire(ctx, "settlement:scan", time.Minute)

		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("connection refused"))
		Expect(acquired).To(BeFalse())
	})
})

var _ = Describe("LocalLocker", func() {
	var (
		locker *LocalLocker
		now    time.Time
		ctx    context.Context
	)

	BeforeEach(func() {
		locker = NewLocalLocker()
		now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		locker.clock = func() time.Time { return now }
		ctx = context.Background()
	})

	It("should exclude a second holder until release", func() {
		release, acquired, err := locker.TryAcquire(ctx, "k", time.Minute)
		Expect(err).NotTo(HaveOccurred())
		Expect(acquired).To(BeTrue())

		_, again, _ := locker.TryAcquire(ctx, "k", time.Minute)
		Expect(again).To(BeFalse())

		release()
		_, afterRelease, _ := locker.TryAcquire(ctx, "k", time.Minute)
		Expect(afterRelease).To(BeTrue())
	})

	It("should expire abandoned locks and ignore stale releases", func() {
		staleRelease, _, _ := locker.TryAcquire(ctx, "k", time.Second)

		now = now.Add(2 * time.Second)
		_, acquired, _ := locker.TryAcquire(ctx, "k", time.Minute)
		Expect(acquired).To(BeTrue())

		staleRelease()
		_, stillHeld, _ := locker.TryAcquire(ctx, "k", time.Minute)
		Expect(stillHeld).To(BeFalse())
	})
})
