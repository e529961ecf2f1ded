package domain

// Banca is the organization administering an exam; it tunes the style of generated content.
type Banca string

// Materia is an exam subject.
type Materia string

// Nivel is the schooling level targeted by an exam.
type Nivel string

const (
	NivelMedio    Nivel = "Médio"
	NivelSuperior Nivel = "Superior"
)

var bancas = []Banca{
	"FGV", "Cebraspe", "FCC", "Vunesp", "Cesgranrio", "Instituto AOCP",
	"IBFC", "Idecan", "Instituto Quadrix", "IADES", "Selecon", "Fundatec",
	"FAURGS", "Objetiva Concursos", "FEPESE", "NC/UFPR", "IBAM", "Gualimp",
	"Consulplan", "FUMARC", "Comperve", "Fadesp", "Cetap", "Consulpam",
	"UPENET", "Itame", "IV/UFG", "IDIB", "Ivin", "Instituto Acesso",
}

var materias = []Materia{
	"Língua Portuguesa", "Matemática", "Raciocínio Lógico", "Informática",
	"Direito Constitucional", "Direito Administrativo", "Direito Penal",
	"Direito Processual Penal", "Direito Civil", "Direito Processual Civil",
	"Direito Tributário", "Direito Eleitoral", "Direito do Trabalho",
	"Direito Processual do Trabalho", "Direito Previdenciário", "Administração Pública",
	"Administração Geral", "Gestão de Pessoas", "Contabilidade Geral",
	"Contabilidade Pública", "Auditoria", "Estatística", "Economia",
	"Arquivologia", "Ética no Serviço Público", "Atualidades",
	"Língua Inglesa", "Língua Espanhola", "Políticas Públicas",
}

var niveis = []Nivel{NivelMedio, NivelSuperior}

// Catalog lists every value accepted by the generation filter.
type Catalog struct {
	Bancas   []Banca   `json:"bancas"`
	Materias []Materia `json:"materias"`
	Niveis   []Nivel   `json:"niveis"`
}

// DefaultCatalog returns a copy of the known bancas, subjects and levels.
func DefaultCatalog() Catalog {
	return Catalog{
		Bancas:   append([]Banca(nil), bancas...),
		Materias: append([]Materia(nil), materias...),
		Niveis:   append([]Nivel(nil), niveis...),
	}
}

func (b Banca) Valid() bool {
	for _, known := range bancas {
		if b == known {
			return true
		}
	}
	return false
}

func (m Materia) Valid() bool {
	for _, known := range materias {
		if m == known {
			return true
		}
	}
	return false
}

func (n Nivel) Valid() bool {
	return n == NivelMedio || n == NivelSuperior
}
