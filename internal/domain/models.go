package domain

// Raw records extracted from RCN GML features. Column names follow the
// source registry's Polish vocabulary; primary keys are the gml:id values
// taken verbatim from the source, never regenerated. Optional fields are
// pointers so absent data round-trips as NULL. Numeric amounts and areas
// stay strings end to end; SQLite column affinity handles coercion.

// Transaction is one raw_transakcja row (RCN_Transakcja).
type Transaction struct {
	ID          string  `db:"id"`
	PropertyRef *string `db:"nieruchomosc_fk"`
	DocumentRef *string `db:"dokument_fk"`
	GrossPrice  *string `db:"cena_transakcji_brutto"`
	EntryDate   *string `db:"data_wpisu"`
	RawXML      string  `db:"raw_xml"`
	ImportID    *int64  `db:"import_id"`
}

// Document is one raw_dokument row (RCN_Dokument). Reference data: carries
// no import tag.
type Document struct {
	ID        string  `db:"id"`
	Reference *string `db:"oznaczenie_dokumentu"`
	IssueDate *string `db:"data_sporzadzenia_dokumentu"`
	Creator   *string `db:"tworca_dokumentu"`
	EntryDate *string `db:"data_wpisu"`
	RawXML    string  `db:"raw_xml"`
}

// Property is one raw_nieruchomosc row (RCN_Nieruchomosc).
type Property struct {
	ID           string  `db:"id"`
	PropertyType *string `db:"rodzaj_nieruchomosci"`
	RightType    *string `db:"rodzaj_prawa_do_nieruchomosci"`
	RightShare   *string `db:"udzial_w_prawie_do_nieruchomosci"`
	GrossPrice   *string `db:"cena_nieruchomosci_brutto"`
	ParcelRef    *string `db:"dzialka_fk"`
	BuildingRef  *string `db:"budynek_fk"`
	UnitRef      *string `db:"lokal_fk"`
	EntryDate    *string `db:"data_wpisu"`
	RawXML       string  `db:"raw_xml"`
}

// Parcel is one raw_dzialka row (RCN_Dzialka).
type Parcel struct {
	ID           string  `db:"id"`
	ParcelNumber *string `db:"id_dzialki"`
	AreaSqm      *string `db:"pole_powierzchni_ewidencyjnej"`
	LandUse      *string `db:"sposob_uzytkowania"`
	AddressRef   *string `db:"adres_dzialki_fk"`
	EntryDate    *string `db:"data_wpisu"`
	RawXML       string  `db:"raw_xml"`
	ImportID     *int64  `db:"import_id"`
}

// Building is one raw_budynek row (RCN_Budynek).
type Building struct {
	ID             string  `db:"id"`
	BuildingNumber *string `db:"id_budynku"`
	Storeys        *string `db:"liczba_kondygnacji"`
	DwellingCount  *string `db:"liczba_mieszkan"`
	BuildingType   *string `db:"rodzaj_budynku"`
	AddressRef     *string `db:"adres_budynku_fk"`
	EntryDate      *string `db:"data_wpisu"`
	RawXML         string  `db:"raw_xml"`
	ImportID       *int64  `db:"import_id"`
}

// Unit is one raw_lokal row (RCN_Lokal). UnitNumber is parsed once, at
// extraction time, out of the compound identifier.
type Unit struct {
	ID         string  `db:"id"`
	CompoundID *string `db:"id_lokalu"`
	UnitNumber *string `db:"numer_lokalu"`
	Function   *string `db:"funkcja_lokalu"`
	RoomCount  *string `db:"liczba_izb"`
	Storey     *string `db:"nr_kondygnacji"`
	UsableArea *string `db:"pow_uzytkowo_lokalu"`
	GrossPrice *string `db:"cena_lokalu_brutto"`
	AddressRef *string `db:"adres_budynku_z_lokalem_fk"`
	EntryDate  *string `db:"data_wpisu"`
	RawXML     string  `db:"raw_xml"`
	ImportID   *int64  `db:"import_id"`
}

// Address is one raw_adres row (RCN_Adres). Reference data: carries no
// import tag.
type Address struct {
	ID          string  `db:"id"`
	City        *string `db:"miejscowosc"`
	Street      *string `db:"ulica"`
	HouseNumber *string `db:"numer_porzadkowy"`
	EntryDate   *string `db:"data_wpisu"`
	RawXML      string  `db:"raw_xml"`
}

// ImportTagged is implemented by records that reference the load attempt
// that produced them. Addresses, documents and properties are reference
// data and deliberately stay untagged.
type ImportTagged interface {
	SetImportID(id int64)
}

func (t *Transaction) SetImportID(id int64) { t.ImportID = &id }
func (p *Parcel) SetImportID(id int64)      { p.ImportID = &id }
func (b *Building) SetImportID(id int64)    { b.ImportID = &id }
func (u *Unit) SetImportID(id int64)        { u.ImportID = &id }

// ImportAttempt is one _import_meta row: a single end-to-end load attempt
// against one source file. Rows are appended, never deleted.
type ImportAttempt struct {
	ID              int64        `db:"id"`
	RunID           string       `db:"run_uuid"`
	SourceFile      string       `db:"source_file"`
	FileSize        *int64       `db:"file_size"`
	Status          ImportStatus `db:"status"`
	StartedAt       *string      `db:"started_at"`
	CompletedAt     *string      `db:"completed_at"`
	RecordsInserted *int64       `db:"records_inserted"`
	DurationSeconds *float64     `db:"duration_seconds"`
	ErrorMessage    *string      `db:"error_message"`
}
