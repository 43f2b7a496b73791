package ai

import (
	"fmt"
	"time"

	"cvmatch/internal/config"
	"cvmatch/internal/types"
)

// OperationPrompts is the system instruction and user template of one operation.
// User templates are fmt formats. The cover letter template takes explicit
// argument indexes: %[1]s name, %[2]s email, %[3]s phone, %[4]s address,
// %[5]s date, %[6]s CV text, %[7]s job posting.
type OperationPrompts struct {
	System string
	User   string
}

const profileFormatDescription = `Format JSON attendu :
{
    "Formation": [
        {
            "niveau_etudes": "str",  // Ex: "Licence", "Master", "Doctorat"
            "domaine_etudes": ["str"]  // Ex: ["Informatique", "Mathématiques"]
        }
    ],
    "Competences": ["str"],  // Ex: ["Python", "Gestion de projet"]
    "Experiences": [
        {
            "domaine_activite": ["str"],  // Ex: ["Tech", "Finance"]
            "poste_occupe": "str",  // Ex: "Développeur Python"
            "duree": "str"  // Ex: "2 ans"
        }
    ],
    "Profil": {
        "titre": "str",  // Ex: "Développeur Full-Stack"
        "disponibilite": "str"  // Ex: "dd-mm-yyyy"
    }
}`

const extractionSystemPrompt = `Tu es un assistant de recrutement qui convertit des documents en données structurées.
Tu ne rapportes que ce qui est explicitement écrit dans le texte fourni.
Une information absente vaut null, une liste absente vaut [].`

// DefaultPrompts holds the built-in prompts of every operation
var DefaultPrompts = map[config.Operation]OperationPrompts{
	config.OpExtractCV: {
		System: extractionSystemPrompt,
		User: `À partir du texte brut d'un CV, extrais les informations suivantes au format JSON.
Si une information n'est pas explicitement mentionnée dans le texte, retourne ` + "`null`" + ` ou une liste vide.
Ne devine pas les informations manquantes et ne retourne que ce qui est clairement présent dans le texte.

` + profileFormatDescription + `

Texte du CV :
"%s"

Ne retourne que le JSON, sans commentaires supplémentaires.`,
	},

	config.OpExtractJob: {
		System: extractionSystemPrompt,
		User: `À partir de cette offre d'emploi, extrais les informations suivantes au format JSON.
Si une information n'est pas explicitement mentionnée dans le texte, retourne ` + "`null`" + ` ou une liste vide.
De plus la disponibilité correspond à la date de début du poste.
Ne devine pas les informations manquantes et ne retourne que ce qui est clairement présent dans le texte.

` + profileFormatDescription + `

Texte de l'offre d'emploi :
"%s"

Ne retourne que le JSON, sans commentaires supplémentaires.`,
	},

	config.OpPersonalInfo: {
		System: extractionSystemPrompt,
		User: `Extrait les informations personnelles suivantes du texte brut d'un CV et retourne-les au format JSON :
- Nom et prénom
- Email
- Numéro de téléphone
- Adresse

Si une information est manquante, retourne "` + types.MissingValue + `" pour cette clé.

Texte brut du CV :
"%s"

Format JSON attendu :
{
    "nom_prenom": "str",
    "email": "str",
    "telephone": "str",
    "adresse": "str"
}

Ne retourne que le JSON, sans commentaires supplémentaires.`,
	},

	config.OpCoverLetter: {
		System: `Tu es un assistant qui rédige des lettres de motivation personnalisées et professionnelles.`,
		User: `Voici les informations nécessaires :

**Informations du candidat :**
- Nom : %[1]s
- Email : %[2]s
- Téléphone : %[3]s
- Adresse : %[4]s
- Date : %[5]s

**Texte brut du CV :**
%[6]s

**Offre d'emploi :**
%[7]s

**Instructions :**
1. Rédige une lettre de motivation au format A4, bien structurée et professionnelle.
2. Mets en avant les compétences et expériences du candidat qui correspondent aux exigences du poste.
3. Mentionne des éléments spécifiques de l'entreprise ou du poste pour montrer que la candidature est personnalisée.
4. Explique pourquoi le candidat est motivé pour rejoindre cette entreprise en particulier.
5. Utilise un ton professionnel et évite les phrases génériques.
6. Ne laisse pas de champs vides et ne devine pas les informations manquantes.

**Format de la lettre :**
- En-tête : Nom, prénom, adresse, email, téléphone, date.
- Introduction : Présentation du candidat et motivation pour le poste.
- Corps : Compétences et expériences en lien avec le poste.
- Conclusion : Expression de l'enthousiasme et disponibilité pour un entretien.

**Exemple de structure :**
%[1]s
%[2]s
%[3]s
%[4]s
%[5]s

Madame, Monsieur,
Je me permets de vous adresser ma candidature pour le poste de [poste] au sein de [entreprise]. [Motivation personnalisée].

Avec mon expérience en [domaine] et mes compétences en [compétences], je suis convaincu de pouvoir contribuer à [objectif de l'entreprise]. [Détail des expériences et compétences pertinentes].

Je serais ravi de discuter de ma candidature lors d'un entretien. Je reste à votre disposition pour toute information complémentaire.

Veuillez agréer, Madame, Monsieur, mes salutations distinguées.
%[1]s`,
	},

	config.OpOptimizeCV: {
		System: `Tu es un assistant qui réécrit des CV pour qu'ils correspondent au mieux à une offre d'emploi, sans inventer d'expériences ni de diplômes.`,
		User: `À partir du texte suivant d'un CV et de la description d'une offre d'emploi, génère un CV optimisé pour correspondre au mieux à l'offre. Assure-toi d'inclure des sections bien définies et formatées :

**Sections attendues :**
- **Profil** : Un résumé clair et concis du candidat.
- **Formation** : Diplômes et certifications pertinents.
- **Expériences professionnelles** : Expériences les plus pertinentes pour l'offre.
- **Compétences** : Liste des compétences techniques et comportementales.
- **Projets & Réalisations** (optionnel) : Principaux projets réalisés en lien avec l'offre.

**CV Original :**
%[1]s

**Offre d'emploi :**
%[2]s

**Nouveau CV optimisé :**`,
	},
}

// extractionOperation maps a profile kind to its model operation
func extractionOperation(kind types.ProfileKind) config.Operation {
	if kind == types.KindJobPosting {
		return config.OpExtractJob
	}
	return config.OpExtractCV
}

// promptsFor resolves the prompts of op: file, then config, then default
func promptsFor(op config.Operation, opCfg config.OperationAIConfig) (system, user string) {
	loaded := config.GetPromptsForOperation(op)
	defaults := DefaultPrompts[op]
	system = resolvePrompt(loaded.System, opCfg.Prompts.System, defaults.System)
	user = resolvePrompt(loaded.User, opCfg.Prompts.User, defaults.User)
	return system, user
}

// resolvePrompt selects the correct prompt string based on a clear priority order:
// 1. A prompt loaded from a file.
// 2. A prompt defined directly in the configuration.
// 3. A hardcoded default prompt.
func resolvePrompt(loadedFromFile, fromConfig, fromDefault string) string {
	if loadedFromFile != "" {
		return loadedFromFile
	}
	if fromConfig != "" {
		return fromConfig
	}
	return fromDefault
}

var frenchMonths = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// FrenchDate formats t as "02 janvier 2006" with French month names
func FrenchDate(t time.Time) string {
	return fmt.Sprintf("%02d %s %d", t.Day(), frenchMonths[t.Month()-1], t.Year())
}
