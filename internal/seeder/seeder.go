package seeder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"linkpage/internal/events"
	"linkpage/internal/links"
	"linkpage/internal/themes"
	"linkpage/internal/users"
	"linkpage/internal/validation"
)

const (
	batchSize = 500
	// Share of clicks that go to the first three links, within the last 15 days.
	popularShare = 0.6
	popularLinks = 3
	spreadDays   = 30
	recentDays   = 15
)

var referrerPool = []string{
	"https://twitter.com",
	"https://instagram.com",
	"https://google.com",
	"https://www.tiktok.com/@demo",
	"https://linktr.ee/demo",
	"direct",
}

var sampleLinks = []struct {
	title  string
	url    string
	layout string
}{
	{"My Website", "https://example.com", "featured"},
	{"Latest Video", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "thumbnail"},
	{"Newsletter", "https://example.substack.com", "default"},
	{"Shop", "https://shop.example.com", "card"},
	{"Podcast", "https://open.spotify.com/show/demo", "icon-only"},
	{"Contact", "mailto:hello@example.com", "minimal"},
}

// Seeder fills the database with a demo profile and a month of traffic.
type Seeder struct {
	DBManager  cartridge.DBManager
	Logger     *slog.Logger
	ViewCount  int
	ClickCount int

	rng *rand.Rand
	now func() time.Time
}

// NewSeeder creates a new seeder instance
func NewSeeder(dbManager cartridge.DBManager, logger *slog.Logger, viewCount, clickCount int) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		DBManager:  dbManager,
		Logger:     logger,
		ViewCount:  viewCount,
		ClickCount: clickCount,
		rng:        rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
		now:        time.Now,
	}
}

// WithSeed makes the generated data reproducible.
func (s *Seeder) WithSeed(seed uint64) *Seeder {
	s.rng = rand.New(rand.NewPCG(seed, seed))
	return s
}

// Run seeds username's profile, creating the user, links and theme when they
// do not exist yet, then records ViewCount views and ClickCount clicks.
func (s *Seeder) Run(ctx context.Context, username string) error {
	start := time.Now()
	db := s.DBManager.GetConnection()

	user, err := s.ensureUser(db, username)
	if err != nil {
		return err
	}
	profileLinks, err := s.ensureLinks(db, user)
	if err != nil {
		return err
	}
	if _, err := themes.Upsert(db, s.Logger, user.ID, themes.UpsertInput{}); err != nil {
		return fmt.Errorf("failed to seed theme: %w", err)
	}

	if err := s.seedViews(ctx, db, user); err != nil {
		return err
	}
	if err := s.seedClicks(ctx, db, profileLinks); err != nil {
		return err
	}

	s.Logger.Info("Seeding completed",
		slog.String("username", user.Username),
		slog.Int("views", s.ViewCount),
		slog.Int("clicks", s.ClickCount),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

func (s *Seeder) ensureUser(db *gorm.DB, username string) (*users.User, error) {
	user, err := users.FindByUsername(db, username)
	if err == nil {
		return user, nil
	}
	var notFound *users.UserNotFoundError
	if !errors.As(err, &notFound) {
		return nil, err
	}

	user, err = users.Create(db, s.Logger, users.CreateInput{
		Username: validation.Some(username),
		Name:     validation.Some("Demo User"),
		Bio:      validation.Some("Everything I make, in one place."),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to seed user: %w", err)
	}
	return user, nil
}

func (s *Seeder) ensureLinks(db *gorm.DB, user *users.User) ([]links.Link, error) {
	existing, err := links.ForUser(db, user.ID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing, nil
	}

	created := make([]links.Link, 0, len(sampleLinks))
	for i, sample := range sampleLinks {
		link, err := links.Create(db, s.Logger, links.CreateInput{
			UserID:   validation.NewInteger(int(user.ID)),
			Title:    validation.Some(sample.title),
			URL:      validation.Some(sample.url),
			Layout:   validation.Some(sample.layout),
			Position: validation.NewInteger(i),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to seed link %q: %w", sample.title, err)
		}
		created = append(created, *link)
	}
	return created, nil
}

// deviceType follows a 50/35/10/5 mobile/desktop/tablet/unknown split.
func (s *Seeder) deviceType() *string {
	var device string
	switch r := s.rng.Float64(); {
	case r < 0.50:
		device = "mobile"
	case r < 0.85:
		device = "desktop"
	case r < 0.95:
		device = "tablet"
	default:
		return nil
	}
	return &device
}

// referrer returns nil for roughly 30% of calls.
func (s *Seeder) referrer() *string {
	if s.rng.Float64() < 0.3 {
		return nil
	}
	r := referrerPool[s.rng.IntN(len(referrerPool))]
	return &r
}

func (s *Seeder) randomTime(withinDays int) time.Time {
	offset := time.Duration(s.rng.Int64N(int64(withinDays) * int64(24*time.Hour)))
	return s.now().UTC().Add(-offset)
}

func (s *Seeder) seedViews(ctx context.Context, db *gorm.DB, user *users.User) error {
	countries := []string{"US", "GB", "DE", "ES", "BR", "IN", "FR"}

	views := make([]events.ProfileView, 0, s.ViewCount)
	for i := 0; i < s.ViewCount; i++ {
		view := events.ProfileView{
			UserID:     user.ID,
			ViewedAt:   s.randomTime(spreadDays),
			Referrer:   s.referrer(),
			DeviceType: s.deviceType(),
		}
		if s.rng.Float64() < 0.8 {
			country := countries[s.rng.IntN(len(countries))]
			view.Country = &country
		}
		views = append(views, view)
	}

	for start := 0; start < len(views); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch := views[start:min(start+batchSize, len(views))]
		err := sqlite.PerformWrite(s.Logger, db, func(tx *gorm.DB) error {
			return tx.CreateInBatches(batch, batchSize).Error
		})
		if err != nil {
			return fmt.Errorf("failed to insert profile views: %w", err)
		}
	}

	s.Logger.Info("Seeded profile views", slog.Int("count", len(views)))
	return nil
}

func (s *Seeder) seedClicks(ctx context.Context, db *gorm.DB, profileLinks []links.Link) error {
	if len(profileLinks) == 0 || s.ClickCount == 0 {
		return nil
	}

	popular := profileLinks[:min(popularLinks, len(profileLinks))]
	regular := profileLinks[len(popular):]
	popularCount := int(float64(s.ClickCount) * popularShare)
	if len(regular) == 0 {
		popularCount = s.ClickCount
	}

	clicks := make([]events.LinkClick, 0, s.ClickCount)
	for i := 0; i < s.ClickCount; i++ {
		var link links.Link
		var at time.Time
		if i < popularCount {
			link = popular[i%len(popular)]
			at = s.randomTime(recentDays)
		} else {
			link = regular[(i-popularCount)%len(regular)]
			at = s.randomTime(spreadDays)
		}
		clicks = append(clicks, events.LinkClick{LinkID: link.ID, ClickedAt: at, Referrer: s.referrer()})
	}

	for start := 0; start < len(clicks); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch := clicks[start:min(start+batchSize, len(clicks))]
		batchCounts := make(map[uint]int64)
		for _, c := range batch {
			batchCounts[c.LinkID]++
		}

		// Rows and counters move together so links.clicks stays in step with link_clicks.
		err := sqlite.PerformWrite(s.Logger, db, func(tx *gorm.DB) error {
			if err := tx.CreateInBatches(batch, batchSize).Error; err != nil {
				return err
			}
			for linkID, n := range batchCounts {
				err := tx.Model(&links.Link{}).Where("id = ?", linkID).Updates(map[string]any{
					"clicks":     gorm.Expr("clicks + ?", n),
					"updated_at": time.Now().UTC(),
				}).Error
				if err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to insert link clicks: %w", err)
		}
	}

	s.Logger.Info("Seeded link clicks", slog.Int("count", len(clicks)))
	return nil
}
