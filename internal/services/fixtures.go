package services

import "github.com/campustransit/transit-server/internal/models"

// seedRoutes is the static route fixture applied when the directory is
// empty on first use.
var seedRoutes = []models.BusRoute{
	{
		Name: "S1: VALASARAVAKKAM",
		Stops: map[string]string{
			"Valasaravakkam": "06:45 AM",
			"Porur":          "07:00 AM",
			"Poonamallee":    "07:20 AM",
			"Main Gate":      "08:05 AM",
		},
		Capacity: 52,
		Buses:    []string{"TN-01-S-1001"},
	},
	{
		Name: "S2: TAMBARAM",
		Stops: map[string]string{
			"Tambaram":     "06:30 AM",
			"Chromepet":    "06:50 AM",
			"Pallavaram":   "07:05 AM",
			"Guindy":       "07:30 AM",
			"Main Gate":    "08:05 AM",
		},
		Capacity: 52,
		Buses:    []string{"TN-01-S-1002", "TN-01-S-1003"},
	},
	{
		Name: "S3: ANNA NAGAR",
		Stops: map[string]string{
			"Anna Nagar West": "06:40 AM",
			"Koyambedu":       "07:00 AM",
			"Vadapalani":      "07:15 AM",
			"Main Gate":       "08:05 AM",
		},
		Capacity: 48,
		Buses:    []string{"TN-01-S-1004"},
	},
}

// seedBuses is the static bus fixture matching seedRoutes.
var seedBuses = []models.Bus{
	{BusNo: "TN-01-S-1001", Route: "S1: VALASARAVAKKAM", Capacity: 52, Driver: "K. Murugan", Status: models.BusOnRoute},
	{BusNo: "TN-01-S-1002", Route: "S2: TAMBARAM", Capacity: 52, Driver: "R. Selvam", Status: models.BusOnRoute},
	{BusNo: "TN-01-S-1003", Route: "S2: TAMBARAM", Capacity: 52, Driver: "", Status: models.BusIdle},
	{BusNo: "TN-01-S-1004", Route: "S3: ANNA NAGAR", Capacity: 48, Driver: "S. Kumar", Status: models.BusMaintenance},
}
