package models

// DepositSubmission ist die request-gebundene, streng getypte Eingabe.
// Sie wird an der HTTP-Grenze eingelesen (unbekannte Felder werden
// abgelehnt) und nach der Normalisierung verworfen.
type DepositSubmission struct {
	Title    string `json:"title" binding:"required"`
	Abstract string `json:"abstract" binding:"required"`
	Genre    string `json:"genre" binding:"required"`
	Notes    string `json:"notes"`

	// Einreichende Person bzw. Gruppe.
	AuthorUni    string `json:"author_uni" binding:"required"`
	AuthorRole   string `json:"author_role"`
	OnBehalfFlag bool   `json:"on_behalf_flag"`
	CommitteeID  uint   `json:"committee_id"`

	OtherAuthors []SubmittedAuthor `json:"other_authors"`

	GroupIDs []uint   `json:"group_ids"`
	Subjects []string `json:"subjects"`
	Keywords []string `json:"keywords"`

	ResourceType string `json:"resource_type"`
	Language     string `json:"language"`
	LicenseType  string `json:"license_type"`
	Published    string `json:"published"`
	Institution  string `json:"institution"`

	// Genau eine Variante; der Typ wählt den Feldsatz aus.
	PublicationType  string             `json:"publication_type"`
	Publication      *PublicationFields `json:"publication"`
	Conference       *ConferenceFields  `json:"conference"`
	Meeting          *MeetingFields     `json:"meeting"`
	NonPublishedDate string             `json:"non_published_date"`

	Embargoed     bool   `json:"embargoed"`
	EmbargoLength string `json:"embargo_length"`

	// Datei-Metadaten; Upload-Transport und Speicherort sind externe
	// Kollaborateure, der Inhalt kommt bereits als Bytes an.
	FileName  string `json:"file_name" binding:"required"`
	FileType  string `json:"file_type"`
	FileSize  int64  `json:"file_size"`
	Content   []byte `json:"content"`
	ThumbName string `json:"thumb_name"`
	ThumbType string `json:"thumb_type"`
	Thumb     []byte `json:"thumb"`
}

// SubmittedAuthor ist ein Co-Autor aus dem Formular, vor dem Abgleich
// mit dem Mitgliederverzeichnis.
type SubmittedAuthor struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

// PublicationFields bündelt die variantenabhängigen Publikationsfelder.
// Welche davon gelesen werden, entscheidet ausschließlich der Typ.
type PublicationFields struct {
	Publisher   string `json:"publisher"`
	PublishDate string `json:"publish_date"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Edition     string `json:"edition"`
	Volume      string `json:"volume"`
	Issue       string `json:"issue"`
	Chapter     string `json:"chapter"`
	StartPage   string `json:"start_page"`
	EndPage     string `json:"end_page"`
	ISBN        string `json:"isbn"`
	ISSN        string `json:"issn"`
	DOI         string `json:"doi"`
	URL         string `json:"url"`
}

// ConferenceFields gilt für die Genres "Conference proceeding"/"Conference paper".
type ConferenceFields struct {
	Title        string `json:"title"`
	Organization string `json:"organization"`
	Location     string `json:"location"`
	Date         string `json:"date"`
}

// MeetingFields gilt für das Genre "Presentation".
type MeetingFields struct {
	Title        string `json:"title"`
	Organization string `json:"organization"`
	Location     string `json:"location"`
	Date         string `json:"date"`
}
