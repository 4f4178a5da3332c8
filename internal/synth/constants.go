package synth

// Defaults.
const (
	defaultSeed            = 20240908
	defaultStart           = "2024-09-08"
	defaultMeetings        = 40
	defaultRacesPerMeeting = 9
	defaultFieldSize       = 12
	defaultHorses          = 240
	defaultJockeys         = 24
	defaultWorkers         = 4
	defaultWithdrawnRate   = 0.02
)

// Race day shape.
const (
	happyValley = "HV"
	shaTin      = "ST"
	// Meetings alternate Sunday (Sha Tin) and Wednesday (Happy Valley).
	sundayToWednesday = 3
	wednesdayToSunday = 4
	sectionCount      = 4
)

// Runner ranges.
const (
	minActualWeight   = 113
	actualWeightRange = 21
	minHorseWeight    = 950
	horseWeightRange  = 300
	minOdds           = 1.5
	oddsRange         = 98.5
	secondsPerMetre   = 0.0595
	paceJitter        = 2.5
	lengthsPerSecond  = 6.0
)

var (
	distances = []int{1000, 1200, 1400, 1600, 1650, 1800, 2000, 2200, 2400}
	classes   = []string{"Class 5", "Class 4", "Class 3", "Class 2", "Class 1", "Group Three"}
	goings    = []string{"GOOD", "GOOD TO FIRM", "GOOD TO YIELDING", "YIELDING", "WET FAST"}
	courses   = []string{"A", "A+3", "B", "C", "C+3"}
	prizes    = []int64{875000, 1170000, 1610000, 2500000, 3750000, 5000000}
)
