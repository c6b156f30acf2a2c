package locator_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shaunagostinho/geofix/internal/config"
	"github.com/shaunagostinho/geofix/internal/fake"
	"github.com/shaunagostinho/geofix/internal/host"
	"github.com/shaunagostinho/geofix/internal/location"
	"github.com/shaunagostinho/geofix/internal/locator"
	"github.com/shaunagostinho/geofix/internal/looper"
	"github.com/shaunagostinho/geofix/internal/permission"
	"github.com/shaunagostinho/geofix/internal/provider"
)

// orderedClient remembers how many listener events had fired each time
// updates were requested.
type orderedClient struct {
	*fake.FusedClient
	listener *fake.Listener
	seen     []int
}

func (c *orderedClient) RequestUpdates(req config.Request, cb func([]location.Sample)) error {
	c.seen = append(c.seen, len(c.listener.Events))
	return c.FusedClient.RequestUpdates(req, cb)
}

var _ = Describe("Acquisition session", func() {
	var (
		clock    *looper.Manual
		sources  *fake.SatellitePlatform
		client   *orderedClient
		avail    *fake.Availability
		perms    *fake.PermissionPlatform
		renderer *fake.Renderer
		activity *fake.Activity
		ref      *host.Ref
		listener *fake.Listener
		cfg      *config.Location
		manager  *locator.Manager
	)
	epoch := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	newManager := func() {
		var err error
		manager, err = locator.New(cfg, ref, listener,
			locator.WithScheduler(clock),
			locator.WithSatellitePlatform(sources),
			locator.WithFusedClient(client),
			locator.WithAvailability(avail),
		)
		Expect(err).NotTo(HaveOccurred())
	}
	dispatcher := func() *provider.Dispatcher {
		d, ok := manager.ActiveProvider().(*provider.Dispatcher)
		Expect(ok).To(BeTrue())
		return d
	}

	BeforeEach(func() {
		clock = looper.NewManual(epoch)
		sources = fake.NewSatellitePlatform()
		listener = &fake.Listener{}
		client = &orderedClient{FusedClient: &fake.FusedClient{}, listener: listener}
		avail = &fake.Availability{Current: provider.ServiceAvailable}
		perms = fake.NewPermissionPlatform(permission.LocationPermissions...)
		renderer = &fake.Renderer{}
		activity = &fake.Activity{}
		ref = host.ForActivity(activity)
		cfg = config.Silent(false, perms)
	})

	Context("with raw sources only and a fresh cached fix", func() {
		BeforeEach(func() {
			cfg = cfg.WithoutFused()
			sources.Enabled[location.SourceGPS] = true
			last := location.Sample{Latitude: 43.65, Longitude: -79.38, Accuracy: 2, Time: epoch.Add(-time.Minute), Source: location.SourceGPS}
			sources.Last[location.SourceGPS] = &last
			newManager()
		})

		It("delivers the cached fix once without acquiring", func() {
			manager.Get()

			Expect(listener.Events).To(Equal([]fake.Event{"granted:true", "location:gps"}))
			Expect(listener.Processes).To(BeEmpty())
			Expect(clock.Pending()).To(BeZero())
			Expect(sources.Requests).To(BeEmpty())
			Expect(manager.IsWaitingForLocation()).To(BeFalse())
		})
	})

	Context("with the fused service asking for a settings resolution", func() {
		BeforeEach(func() {
			cfg.Fused.AskForSettings = true
			newManager()
			manager.Get()
			client.CompleteLast(nil, nil)
			client.CompleteSettings(&provider.SettingsError{Status: provider.SettingsResolutionRequired})
		})

		It("shows the resolution on the host", func() {
			Expect(client.Resolutions).To(HaveLen(1))
			Expect(manager.IsAnyDialogShowing()).To(BeTrue())
			Expect(client.Requests).To(BeZero())
		})

		It("requests updates once the user accepts", func() {
			manager.OnActivityResult(host.RequestSettingsResolution, host.ResultOK, nil)

			Expect(manager.IsAnyDialogShowing()).To(BeFalse())
			Expect(listener.Processes).To(Equal([]location.ProcessType{location.FromFused}))
			Expect(client.seen).To(HaveLen(1))
			Expect(listener.Events[client.seen[0]-1]).To(Equal(fake.Event("process:fused")))
			Expect(client.Requesting).To(BeTrue())
		})
	})

	Context("when the fused service never answers", func() {
		BeforeEach(func() {
			sources.Enabled[location.SourceGPS] = true
			newManager()
			manager.Get()
			client.CompleteLast(nil, nil)
		})

		It("switches to raw sources after the wait period", func() {
			Expect(dispatcher().ActiveProvider()).To(BeAssignableToTypeOf(&provider.FusedProvider{}))

			clock.Advance(config.DefaultWaitPeriod - time.Millisecond)
			Expect(dispatcher().ActiveProvider()).To(BeAssignableToTypeOf(&provider.FusedProvider{}))

			clock.Advance(time.Millisecond)
			Expect(dispatcher().ActiveProvider()).To(BeAssignableToTypeOf(&provider.SatelliteProvider{}))
			Expect(client.Requesting).To(BeFalse())
			Expect(listener.Events).To(Equal([]fake.Event{"granted:true", "process:fused", "process:gps"}))
			Expect(sources.Registered(location.SourceGPS)).To(BeTrue())
			Expect(manager.IsWaitingForLocation()).To(BeTrue())
		})

		It("reports the raw source fix", func() {
			clock.Advance(config.DefaultWaitPeriod)
			sources.Emit(location.Sample{Accuracy: 4, Time: clock.Now(), Source: location.SourceGPS})

			Expect(listener.Locations).To(HaveLen(1))
			Expect(listener.Failures).To(BeEmpty())
			Expect(manager.IsWaitingForLocation()).To(BeFalse())
		})
	})

	Context("when the user denies permissions", func() {
		BeforeEach(func() {
			perms = fake.NewPermissionPlatform()
			var err error
			cfg, err = config.Default("", "", renderer, perms, nil)
			Expect(err).NotTo(HaveOccurred())
			sources.Enabled[location.SourceGPS] = true
			newManager()
		})

		It("fails with permission denied and never starts a provider", func() {
			manager.Get()
			Expect(perms.Requests).To(HaveLen(1))
			Expect(listener.Events).To(Equal([]fake.Event{"process:asking_permissions"}))

			manager.OnRequestPermissionsResult(host.RequestRuntimePermission, permission.LocationPermissions, []bool{true, false})

			Expect(listener.Failures).To(Equal([]location.FailReason{location.FailPermissionDenied}))
			Expect(dispatcher().ActiveProvider()).To(BeNil())
			Expect(client.LastCalls).To(BeZero())
			Expect(sources.Requests).To(BeEmpty())
		})

		It("runs the session once the user grants them", func() {
			manager.Get()
			manager.OnRequestPermissionsResult(host.RequestRuntimePermission, permission.LocationPermissions, []bool{true, true})

			Expect(listener.Events[:2]).To(Equal([]fake.Event{"process:asking_permissions", "granted:false"}))
			Expect(client.LastCalls).To(Equal(1))
		})

		It("fails at once when there is no screen to ask on", func() {
			ref.Detach()
			manager.Get()

			Expect(listener.Events).To(Equal([]fake.Event{"process:asking_permissions", "failed:permission_denied"}))
			Expect(perms.Requests).To(BeEmpty())
		})
	})
})
