package task

import "fmt"

// DemoTechnicians are registered by Seed.
var DemoTechnicians = []Technician{
	{ID: 1, Name: "Andrii Technician", Email: "andrii@eurocode.ua"},
	{ID: 2, Name: "Serhii Master", Email: "sergii@eurocode.ua"},
	{ID: 3, Name: "Maksym Specialist", Email: "maksym@eurocode.ua"},
	{ID: 4, Name: "Ivan Technician", Email: "ivan@eurocode.ua"},
	{ID: 5, Name: "Petro Repairman", Email: "petro@eurocode.ua"},
}

// Seed populates an empty store with demo technicians and tasks. It is a
// no-op when the store already holds tasks.
func Seed(s Store) error {
	counts, err := s.Counts()
	if err != nil {
		return err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	if total > 0 {
		return nil
	}

	for _, t := range DemoTechnicians {
		if err := s.UpsertTechnician(t); err != nil {
			return fmt.Errorf("seed technician %d: %w", t.ID, err)
		}
	}

	one, two := int64(1), int64(2)
	demo := []Task{
		{
			Status: StatusInProgress, Priority: PriorityHigh, AssignedTo: &one,
			CompanyName: "Cafe Lvivska", Address: "Lviv, Shevchenka St, 25", ContactPhone: "+380672345678",
			Model: "ATOL 55F", SerialNumber: "KAS-2024-003", DeviceType: "Cash register",
			Description: "Does not print receipts, paper error",
		},
		{
			Status: StatusInProgress, Priority: PriorityNormal, AssignedTo: &two,
			CompanyName: "Pharmacy Zdorovia", Address: "Kyiv, Likarska St, 12", ContactPhone: "+380631234567",
			Model: "POS-80", SerialNumber: "FIS-2024-004", DeviceType: "Fiscal printer",
			Description: "Internal components cleaning",
		},
		{
			Status: StatusNew, Priority: PriorityNormal,
			CompanyName: "Eurocode LLC", Address: "Kyiv, Testova St, 1", ContactPhone: "+380501234567",
			Model: "ATOL 90F", SerialNumber: "KAS-2024-001", DeviceType: "Cash register",
			Description: "Cash register verification",
		},
		{
			Status: StatusNew, Priority: PriorityHigh,
			CompanyName: "Electronics Store", Address: "Kyiv, Tekhnichna St, 8", ContactPhone: "+380501112233",
			Model: "MINI MARKET MM-300", SerialNumber: "KAS-2024-005", DeviceType: "Cash register",
			Description: "Configure accounting system connection",
		},
	}
	for i := range demo {
		if _, err := s.Create(&demo[i]); err != nil {
			return fmt.Errorf("seed task: %w", err)
		}
	}
	return nil
}
