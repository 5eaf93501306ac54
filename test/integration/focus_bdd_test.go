//go:build integration

package integration

import (
	"context"
	"errors"
	"os"
	"strconv"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focus_mon/internal/domain"
	"github.com/eliteGoblin/focusd/focus_mon/internal/infra"
	"github.com/eliteGoblin/focusd/focus_mon/internal/policy"
	"github.com/eliteGoblin/focusd/focus_mon/internal/usecase"
	"github.com/eliteGoblin/focusd/focus_mon/test/fixtures"
)

const selfID = "com.example.lifexp"

var testFilter = policy.Filter{SelfID: selfID, TrustedShellIDs: []string{"com.android.systemui"}}

var _ = Describe("Focus coordination", func() {
	var (
		ctx     context.Context
		tmpDir  string
		key     []byte
		store   *infra.EncryptedStore
		logger  *zap.Logger
		openNew func() *infra.EncryptedStore
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		logger = zap.NewNop()
		tmpDir, err = os.MkdirTemp("", "focusmon-integration-*")
		Expect(err).NotTo(HaveOccurred())

		key, err = infra.GenerateKey()
		Expect(err).NotTo(HaveOccurred())

		// each handle stands in for a separate process on the same store
		openNew = func() *infra.EncryptedStore {
			s, err := infra.NewEncryptedStore(tmpDir, key)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(s.Close)
			return s
		}
		store = openNew()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("Policy Store", func() {
		It("should read defaults from an empty store", func() {
			snap, err := store.Snapshot(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(snap).To(Equal(domain.DefaultSnapshot()))
		})

		It("should persist entries across reopen", func() {
			Expect(store.Apply(ctx, domain.Delta{
				domain.KeyFocusActive:   true,
				domain.KeyBlocklist:     `["com.game.x"]`,
				domain.KeyPendingAction: "home",
			})).To(Succeed())
			Expect(store.Close()).To(Succeed())

			snap, err := openNew().Snapshot(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.FocusActive).To(BeTrue())
			Expect(snap.BlocklistRaw).To(Equal(`["com.game.x"]`))
			Expect(snap.PendingAction).To(Equal("home"))
		})

		It("should refuse a different key", func() {
			Expect(store.Apply(ctx, domain.Delta{domain.KeyFocusActive: true})).To(Succeed())

			otherKey, err := infra.GenerateKey()
			Expect(err).NotTo(HaveOccurred())
			_, err = infra.NewEncryptedStore(tmpDir, otherKey)
			Expect(err).To(HaveOccurred())
		})

		It("should apply nothing when an update fails part way", func() {
			boom := errors.New("boom")
			err := store.Update(ctx, func(tx domain.StoreTx) error {
				Expect(tx.Set(domain.KeyPendingAction, "end_focus")).To(Succeed())
				Expect(tx.Set(domain.KeyBlockingNow, true)).To(Succeed())
				return boom
			})
			Expect(err).To(MatchError(boom))

			snap, err := store.Snapshot(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.PendingAction).To(BeEmpty())
			Expect(snap.BlockingNow).To(BeFalse())
		})
	})

	Describe("Event Monitor and Blocker Controller", func() {
		var (
			surface  *fixtures.FakeSurface
			launcher *fixtures.FakeLauncher
			monitor  *usecase.Monitor
		)

		BeforeEach(func() {
			surface = &fixtures.FakeSurface{Outcome: domain.OutcomeGoBack}
			launcher = &fixtures.FakeLauncher{}
			blocker := usecase.NewBlocker(store, surface, launcher, logger)
			monitor = usecase.NewMonitor(store, testFilter, blocker, logger)
			Expect(store.Apply(ctx, domain.Delta{
				domain.KeyFocusActive: true,
				domain.KeyBlocklist:   `["com.game.x","` + selfID + `"]`,
			})).To(Succeed())
		})

		Context("when many changes to a blocked app race", func() {
			It("should show exactly one interception screen", func() {
				gate := make(chan struct{})
				surface.Gate = gate

				// each racer uses its own handle, like separate callbacks
				var racers []*usecase.Monitor
				for i := 0; i < 8; i++ {
					racers = append(racers, usecase.NewMonitor(openNew(), testFilter,
						usecase.NewBlocker(store, surface, launcher, logger), logger))
				}

				var wg sync.WaitGroup
				for _, racer := range racers {
					wg.Add(1)
					go func(racer *usecase.Monitor) {
						defer GinkgoRecover()
						defer wg.Done()
						_, err := racer.OnForegroundAppChanged(ctx, "com.game.x")
						Expect(err).NotTo(HaveOccurred())
					}(racer)
				}

				Eventually(func() int { return len(surface.Shown()) }).Should(Equal(1))
				Consistently(func() int { return len(surface.Shown()) }, 200*time.Millisecond).Should(Equal(1))
				close(gate)
				wg.Wait()

				snap, err := store.Snapshot(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(snap.BlockingNow).To(BeFalse())
				Expect(launcher.Calls()).To(Equal(1))
			})
		})

		Context("when the app is this system's own id", func() {
			It("should ignore it even though it is blocklisted", func() {
				d, err := monitor.OnForegroundAppChanged(ctx, selfID)
				Expect(err).NotTo(HaveOccurred())
				Expect(d.Intercept).To(BeFalse())
				Expect(d.Reason).To(Equal(policy.ReasonSelf))
				Expect(surface.Shown()).To(BeEmpty())
			})
		})

		Context("when the blocklist is corrupt", func() {
			It("should fail open", func() {
				Expect(store.Apply(ctx, domain.Delta{domain.KeyBlocklist: "{not valid}"})).To(Succeed())

				d, err := monitor.OnForegroundAppChanged(ctx, "com.game.x")
				Expect(err).NotTo(HaveOccurred())
				Expect(d.Intercept).To(BeFalse())
				Expect(surface.Shown()).To(BeEmpty())

				snap, err := store.Snapshot(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(policy.ParseBlocklist(snap.BlocklistRaw).Len()).To(Equal(0))
			})
		})

		Context("when the user ends focus", func() {
			It("should release the guard and overwrite the pending action", func() {
				Expect(store.Apply(ctx, domain.Delta{domain.KeyPendingAction: "focus30"})).To(Succeed())
				surface.Outcome = domain.OutcomeEndFocus

				_, err := monitor.OnForegroundAppChanged(ctx, "com.game.x")
				Expect(err).NotTo(HaveOccurred())

				snap, err := store.Snapshot(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(snap.BlockingNow).To(BeFalse())
				Expect(snap.PendingAction).To(Equal("end_focus"))
				Expect(snap.FocusActive).To(BeTrue())
			})
		})

		Context("when the screen is torn down", func() {
			It("should reset the guard", func() {
				gate := make(chan struct{})
				surface.Gate = gate
				shutdown, cancel := context.WithCancel(ctx)

				done := make(chan struct{})
				go func() {
					defer GinkgoRecover()
					defer close(done)
					_, _ = monitor.OnForegroundAppChanged(shutdown, "com.game.x")
				}()
				Eventually(func() int { return len(surface.Shown()) }).Should(Equal(1))
				cancel()
				Eventually(done).Should(BeClosed())

				snap, err := store.Snapshot(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(snap.BlockingNow).To(BeFalse())
				Expect(launcher.Calls()).To(BeZero())
			})
		})
	})

	Describe("Action Relay", func() {
		It("should hand a pending action to exactly one consumer", func() {
			relay := usecase.NewRelay(store, logger)
			Expect(relay.Publish(ctx, domain.ActionComplete)).To(Succeed())

			var (
				mu  sync.Mutex
				got []string
				wg  sync.WaitGroup
			)
			var consumers []*usecase.Relay
			for i := 0; i < 6; i++ {
				consumers = append(consumers, usecase.NewRelay(openNew(), logger))
			}
			for _, consumer := range consumers {
				wg.Add(1)
				go func(consumer *usecase.Relay) {
					defer GinkgoRecover()
					defer wg.Done()
					action, ok, err := consumer.Consume(ctx)
					Expect(err).NotTo(HaveOccurred())
					if ok {
						mu.Lock()
						got = append(got, action)
						mu.Unlock()
					}
				}(consumer)
			}
			wg.Wait()
			Expect(got).To(Equal([]string{"complete"}))

			_, ok, err := relay.Consume(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Restart Policy", func() {
		var now time.Time

		BeforeEach(func() {
			now = time.Date(2024, 3, 1, 8, 0, 0, 0, time.Local)
		})

		Context("when boot and upgrade fire together in two processes", func() {
			It("should start the presence process once", func() {
				spawner := &fixtures.FakeSpawner{}
				triggers := []domain.EventType{domain.EventBootCompleted, domain.EventPackageUpgraded}
				policies := make([]*usecase.RestartPolicy, len(triggers))
				for i := range triggers {
					s := openNew()
					presence := usecase.NewPresenceController(s, fixtures.NewFakeProcessManager(), spawner, logger)
					policies[i] = usecase.NewRestartPolicyWithClock(s, presence, policy.DefaultRestartCooldown,
						func() time.Time { return now }, logger)
				}

				var wg sync.WaitGroup
				for i, trigger := range triggers {
					wg.Add(1)
					go func(restart *usecase.RestartPolicy, trigger domain.EventType) {
						defer GinkgoRecover()
						defer wg.Done()
						_, err := restart.Evaluate(ctx, trigger)
						Expect(err).NotTo(HaveOccurred())
					}(policies[i], trigger)
				}
				wg.Wait()

				Expect(spawner.Spawned()).To(Equal([]domain.DaemonRole{domain.RolePresence}))
				snap, err := store.Snapshot(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(snap.PresenceLastDate).To(Equal("2024-03-01"))
				Expect(snap.PresenceLastDecision).To(Equal(domain.DecisionStart))
				Expect(snap.PresenceLastSyncAt.UnixMilli()).To(Equal(now.UnixMilli()))
			})
		})

		Context("when the presence already started today", func() {
			It("should not restart after the cooldown", func() {
				Expect(store.Apply(ctx, domain.Delta{
					domain.KeyPresenceLastDate:   "2024-03-01",
					domain.KeyPresenceLastSyncAt: now.Add(-2 * time.Hour).UnixMilli(),
				})).To(Succeed())
				spawner := &fixtures.FakeSpawner{}
				presence := usecase.NewPresenceController(store, fixtures.NewFakeProcessManager(), spawner, logger)
				restart := usecase.NewRestartPolicyWithClock(store, presence, policy.DefaultRestartCooldown,
					func() time.Time { return now }, logger)

				d, err := restart.Evaluate(ctx, domain.EventBootCompleted)
				Expect(err).NotTo(HaveOccurred())
				Expect(d.ShouldStart).To(BeFalse())
				Expect(spawner.Spawned()).To(BeEmpty())
			})
		})
	})

	Describe("Daemon registration", func() {
		Context("when several processes claim the monitor role at once", func() {
			It("should register exactly one of them", func() {
				pm := fixtures.NewFakeProcessManager()
				pids := []int{7001, 7002, 7003, 7004, 7005, 7006}
				regs := make([]*usecase.Registration, len(pids))
				for i, pid := range pids {
					pm.SetRunning(pid, true)
					regs[i] = usecase.NewRegistration(openNew(), pm, domain.RoleMonitor)
				}

				var (
					mu      sync.Mutex
					winners []int
					wg      sync.WaitGroup
					start   = make(chan struct{})
				)
				for i := range regs {
					wg.Add(1)
					go func(reg *usecase.Registration, pid int) {
						defer GinkgoRecover()
						defer wg.Done()
						<-start
						err := reg.Claim(ctx, pid)
						if err != nil {
							Expect(err).To(MatchError(domain.ErrDaemonRunning))
							return
						}
						mu.Lock()
						winners = append(winners, pid)
						mu.Unlock()
					}(regs[i], pids[i])
				}
				close(start)
				wg.Wait()

				Expect(winners).To(HaveLen(1))
				registered, err := store.Meta(ctx, domain.MetaMonitorPID)
				Expect(err).NotTo(HaveOccurred())
				Expect(registered).To(Equal(strconv.Itoa(winners[0])))
			})
		})
	})

	Describe("Presence commands", func() {
		It("should treat stop as idempotent and start as a no-op while running", func() {
			pm := fixtures.NewFakeProcessManager()
			spawner := &fixtures.FakeSpawner{}
			presence := usecase.NewPresenceController(store, pm, spawner, logger)

			Expect(presence.Stop(ctx)).To(Succeed())
			Expect(presence.Start(ctx)).To(Succeed())
			Expect(presence.Registration().Claim(ctx, 4321)).To(Succeed())
			pm.SetRunning(4321, true)
			Expect(presence.Start(ctx)).To(Succeed())
			Expect(spawner.Spawned()).To(HaveLen(1))

			Expect(presence.Stop(ctx)).To(Succeed())
			Expect(presence.Stop(ctx)).To(Succeed())
			Expect(pm.Terminated()).To(Equal([]int{4321}))

			st, err := presence.Status(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.State).To(Equal(domain.PresenceStopped))
		})
	})
})
