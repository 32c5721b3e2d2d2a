// Package seed loads the sample catalog, a week of open slots and a demo
// user into an empty store.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/Shivanand-hulikatti/consultancy-booking/internal/model"
	"github.com/Shivanand-hulikatti/consultancy-booking/internal/repository"
)

// Catalog is the sample service list. Prices are in paise.
var Catalog = []model.Service{
	{Name: "Business Strategy Consulting", Description: "Expert guidance on business growth, market expansion, and strategic planning.", Price: 500000, Duration: 60},
	{Name: "Technology Implementation", Description: "End-to-end technology solutions and digital transformation strategies.", Price: 800000, Duration: 90},
	{Name: "Marketing & Branding", Description: "Comprehensive marketing strategies and brand development solutions.", Price: 200000, Duration: 45},
	{Name: "Website Audit Trial", Description: "Basic website performance and SEO audit for new clients.", Price: 100000, Duration: 30},
	{Name: "Social Media Setup", Description: "Complete social media profile setup and basic strategy guide.", Price: 300000, Duration: 45},
	{Name: "Content Marketing Plan", Description: "Comprehensive content marketing strategy and implementation guide.", Price: 490000, Duration: 60},
	{Name: "E-commerce Optimization", Description: "Complete optimization of your e-commerce platform for better conversions.", Price: 490000, Duration: 90},
	{Name: "Data Analytics Setup", Description: "Professional setup of analytics tools and custom reporting dashboard.", Price: 300000, Duration: 60},
}

var dailyStarts = []string{"09:00", "11:00", "14:00"}

type Options struct {
	// From is the first day that gets slots.
	From time.Time
	Days int
	// DemoEmail/DemoPassword create a user when both are set.
	DemoEmail    string
	DemoPassword string
}

// Run seeds r unless the catalog already has entries. It reports whether
// anything was written.
func Run(ctx context.Context, r repository.Repos, opts Options) (bool, error) {
	existing, err := r.Catalog.ListActive(ctx)
	if err != nil {
		return false, fmt.Errorf("check catalog: %w", err)
	}
	if len(existing) > 0 {
		logrus.WithField("services", len(existing)).Info("catalog already seeded")
		return false, nil
	}

	slots := 0
	for _, tmpl := range Catalog {
		svc := tmpl
		svc.Active = true
		if err := r.Catalog.CreateService(ctx, &svc); err != nil {
			return false, fmt.Errorf("create service %q: %w", svc.Name, err)
		}
		for day := 0; day < opts.Days; day++ {
			date := opts.From.AddDate(0, 0, day)
			for _, start := range dailyStarts {
				slot, err := slotFor(svc, date, start)
				if err != nil {
					return false, err
				}
				if err := r.Slots.Create(ctx, slot); err != nil {
					return false, fmt.Errorf("create slot: %w", err)
				}
				slots++
			}
		}
	}

	if opts.DemoEmail != "" && opts.DemoPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(opts.DemoPassword), bcrypt.DefaultCost)
		if err != nil {
			return false, fmt.Errorf("hash demo password: %w", err)
		}
		if err := r.Users.Create(ctx, &model.User{Email: opts.DemoEmail, PasswordHash: string(hash)}); err != nil {
			return false, fmt.Errorf("create demo user: %w", err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"services": len(Catalog),
		"slots":    slots,
	}).Info("sample data seeded")
	return true, nil
}

func slotFor(svc model.Service, date time.Time, start string) (*model.TimeSlot, error) {
	begin, err := time.Parse("15:04", start)
	if err != nil {
		return nil, fmt.Errorf("parse slot start %q: %w", start, err)
	}
	end := begin.Add(time.Duration(svc.Duration) * time.Minute)
	return &model.TimeSlot{
		ServiceID: svc.ID,
		Date:      date.Format(time.DateOnly),
		StartTime: start,
		EndTime:   end.Format("15:04"),
	}, nil
}
