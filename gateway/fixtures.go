package gateway

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

// Fixtures is a complete, referentially consistent data set for seeding a store.
type Fixtures struct {
	Shippers  []Shipper
	Couriers  []Courier
	Shipments []Shipment
	Processes []ShipperProcess
}

// FixtureOptions controls GenerateFixtures.
type FixtureOptions struct {
	Seed      uint64
	Shippers  int
	Couriers  int
	Shipments int
	// Now anchors generated ETAs and delivery dates.
	Now time.Time
}

// DefaultFixtureOptions matches the demo database.
func DefaultFixtureOptions() FixtureOptions {
	return FixtureOptions{
		Seed:      42,
		Shippers:  20,
		Couriers:  30,
		Shipments: 100,
		Now:       time.Date(2025, time.June, 20, 12, 0, 0, 0, time.UTC),
	}
}

// DemoShipperEmail owns exactly DemoShipmentIDs in generated fixtures.
const DemoShipperEmail = "mclark@bryant.com"

// DemoShipmentIDs are the shipments of DemoShipperEmail. DemoInTransitID is in transit.
var DemoShipmentIDs = []int64{2, 5, 7}

const DemoInTransitID int64 = 5

var (
	companyWords = []string{"Bryant", "Harbor", "Summit", "Pioneer", "Atlas", "Keystone", "Redwood", "Granite", "Lakeside", "Crescent", "Beacon", "Ironwood"}
	companyKinds = []string{"Logistics", "Supply", "Trading", "Industries", "Foods", "Textiles", "Freight", "Goods"}
	firstNames   = []string{"Maria", "James", "Ana", "Robert", "Linda", "David", "Sofia", "Daniel", "Grace", "Ethan", "Nora", "Lucas"}
	lastNames    = []string{"Clark", "Nguyen", "Patel", "Garcia", "Kim", "Lopez", "Brown", "Silva", "Novak", "Reyes", "Young", "Hall"}
	streets      = []string{"Main St", "Oak Ave", "Pine Rd", "Maple Dr", "Cedar Ln", "Elm St", "River Rd", "Hill Blvd"}
	cities       = []string{"Springfield, IL 62701", "Austin, TX 73301", "Denver, CO 80202", "Portland, OR 97201", "Tampa, FL 33601", "Columbus, OH 43004"}
	commentBank  = []string{"Fragile, handle with care.", "Dock appointment required.", "Customer requested morning delivery.", "Pallet count verified at pickup.", "Liftgate needed at destination."}
)

// GenerateFixtures builds a deterministic data set: the same options always give the same
// records. Shipper 1 is always DemoShipperEmail and owns exactly DemoShipmentIDs.
func GenerateFixtures(o FixtureOptions) Fixtures {
	if o.Shippers < 2 {
		o.Shippers = 2
	}
	if last := int(DemoShipmentIDs[len(DemoShipmentIDs)-1]); o.Shipments < last {
		o.Shipments = last
	}
	if o.Now.IsZero() {
		o.Now = SystemClock()
	}
	rng := rand.New(rand.NewPCG(o.Seed, o.Seed^0x9e3779b97f4a7c15))
	pick := func(list []string) string { return list[rng.IntN(len(list))] }

	var f Fixtures
	for i := 1; i <= o.Shippers; i++ {
		name := fmt.Sprintf("%s %s", pick(companyWords), pick(companyKinds))
		email := fmt.Sprintf("contact%d@%s.com", i, strings.ToLower(strings.Fields(name)[0]))
		if i == 1 {
			name, email = "Bryant Logistics", DemoShipperEmail
		}
		f.Shippers = append(f.Shippers, Shipper{ID: int64(i), Name: name, Email: email})
		f.Processes = append(f.Processes, ShipperProcess{
			ShipperID: int64(i),
			Email:     email,
			ThreadID:  int64(1000 + rng.IntN(9000)),
		})
	}
	for i := 1; i <= o.Couriers; i++ {
		first, last := pick(firstNames), pick(lastNames)
		f.Couriers = append(f.Couriers, Courier{
			ID:            int64(i),
			Name:          first + " " + last,
			ContactNumber: fmt.Sprintf("(%03d)%03d-%04d", 200+rng.IntN(800), rng.IntN(1000), rng.IntN(10000)),
			Status:        CourierStatuses[rng.IntN(len(CourierStatuses))],
			Email:         fmt.Sprintf("%s.%s%d@couriers.example", strings.ToLower(first), strings.ToLower(last), i),
		})
	}

	demo := make(map[int64]bool, len(DemoShipmentIDs))
	for _, id := range DemoShipmentIDs {
		demo[id] = true
	}
	for i := 1; i <= o.Shipments; i++ {
		id := int64(i)
		eta := o.Now.Add(time.Duration(rng.IntN(30*24*3600)) * time.Second)
		s := Shipment{
			ID:            id,
			BOLDocID:      int64(100000 + rng.IntN(900000)),
			PODDocID:      int64(100000 + rng.IntN(900000)),
			ETA:           &eta,
			Status:        ShipmentStatuses[rng.IntN(len(ShipmentStatuses))],
			SourceAddress: address(rng, pick),
			DestAddress:   address(rng, pick),
		}
		if demo[id] {
			s.ShipperID = 1
		} else {
			s.ShipperID = int64(2 + rng.IntN(o.Shippers-1))
		}
		if rng.IntN(3) > 0 && o.Couriers > 0 {
			c := int64(1 + rng.IntN(o.Couriers))
			s.CourierID = &c
		}
		if rng.IntN(2) == 0 {
			d := eta.Add(time.Duration(rng.IntN(15*24*3600)) * time.Second)
			s.DeliveryDate = &d
		}
		if rng.IntN(2) == 0 {
			c := pick(commentBank)
			s.Comments = &c
		}
		if id == DemoInTransitID {
			s.Status = StatusInTransit
			s.DeliveryDate = nil
		}
		f.Shipments = append(f.Shipments, s)
	}
	return f
}

func address(rng *rand.Rand, pick func([]string) string) string {
	return fmt.Sprintf("%d %s, %s", 1+rng.IntN(9899), pick(streets), pick(cities))
}
