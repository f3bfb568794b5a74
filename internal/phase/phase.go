package phase

// Key identifies a rice growth phase as returned by the detection service.
type Key string

const (
	V1 Key = "fase_v1"
	V2 Key = "fase_v2"
	G1 Key = "fase_g1"
	G2 Key = "fase_g2"
)

// Phase describes one growth phase and what to do during it.
type Phase struct {
	Key         Key
	Code        string
	Title       string
	Range       string
	Description string
	Image       string
	// Days after planting (HST) at which the phase starts.
	StartDay int

	Fertilizer string
	Pest       string
}

var catalogue = []Phase{
	{
		Key:         V1,
		Code:        "V1",
		Title:       "Fase Vegetatif Awal",
		Range:       "0–35 HST",
		Description: "Pertumbuhan daun dan akar cepat",
		Image:       "/assets/img/deteksi-fase/v1.jpg",
		StartDay:    0,
		Fertilizer:  "Gunakan pupuk NPK seimbang dengan komposisi 15:15:15 untuk mendukung pertumbuhan akar dan daun awal.",
		Pest:        "Pantau serangan wereng, penggerek batang, dan keong mas. Gunakan pestisida selektif jika diperlukan.",
	},
	{
		Key:         V2,
		Code:        "V2",
		Title:       "Fase Vegetatif Akhir",
		Range:       "35–55 HST",
		Description: "Tunas dan daun bertambah optimal",
		Image:       "/assets/img/deteksi-fase/v2.jpg",
		StartDay:    35,
		Fertilizer:  "Tingkatkan pupuk nitrogen untuk mendukung pertumbuhan vegetatif maksimal dan pembentukan anakan.",
		Pest:        "Waspada ulat grayak, belalang, dan hama daun. Lakukan monitoring rutin setiap 3 hari.",
	},
	{
		Key:         G1,
		Code:        "G1",
		Title:       "Fase Reproduktif",
		Range:       "55–85 HST",
		Description: "Malai mulai terbentuk dan berkembang",
		Image:       "/assets/img/deteksi-fase/g1.jpg",
		StartDay:    55,
		Fertilizer:  "Fokus pada pupuk kalium dan fosfor untuk memperkuat malai dan meningkatkan ketahanan tanaman.",
		Pest:        "Perhatikan walang sangit saat malai terbentuk. Gunakan perangkap feromon untuk pengendalian.",
	},
	{
		Key:         G2,
		Code:        "G2",
		Title:       "Fase Pematangan",
		Range:       "85+ HST",
		Description: "Gabah menguning dan siap panen",
		Image:       "/assets/img/deteksi-fase/g2.jpg",
		StartDay:    85,
		Fertilizer:  "Kurangi pemupukan, fokus pada pengelolaan air dan pengendalian hama menjelang panen.",
		Pest:        "Cegah serangan tikus, burung, dan penggerek batang padi. Pasang perangkap dan jaring pelindung.",
	},
}

// All returns the phases in growth order.
func All() []Phase {
	out := make([]Phase, len(catalogue))
	copy(out, catalogue)
	return out
}

// Lookup returns the phase for key.
func Lookup(key Key) (Phase, bool) {
	for _, p := range catalogue {
		if p.Key == key {
			return p, true
		}
	}
	return Phase{}, false
}

// ForAge returns the phase a crop planted days ago is expected to be in.
func ForAge(days float64) Phase {
	current := catalogue[0]
	for _, p := range catalogue {
		if days >= float64(p.StartDay) {
			current = p
		}
	}
	return current
}
