package memstore

import (
	"github.com/dbca-wa/science-projects-service-sub000/pkg/domain"

	"github.com/hashicorp/go-memdb"
)

const (
	// PK is the primary index every table carries.
	PK = "id"

	DocumentTable     = "document"
	ProjectTable      = "project"
	EndorsementTable  = "endorsement"
	ReportDetailTable = "report_detail"
	AnnualReportTable = "annual_report"
	UserTable         = "user"
	AreaTable         = "business_area"
	MemberTable       = "project_member"
	EventTable        = "document_event"
	IdempotencyTable  = "idempotency_record"

	byProject  = "project"
	byUser     = "user"
	byArea     = "area"
	byLeader   = "leader"
	byToken    = "token"
	byDocument = "document"
)

// eventRecord keeps insertion order for events sharing a timestamp.
type eventRecord struct {
	Seq uint64
	domain.DocumentEvent
}

func stringIndex(name, field string, unique bool) *memdb.IndexSchema {
	return &memdb.IndexSchema{
		Name:         name,
		Unique:       unique,
		AllowMissing: !unique,
		Indexer:      &memdb.StringFieldIndex{Field: field},
	}
}

func Schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			DocumentTable: {
				Name: DocumentTable,
				Indexes: map[string]*memdb.IndexSchema{
					PK:        stringIndex(PK, "ID", true),
					byProject: stringIndex(byProject, "ProjectID", false),
				},
			},
			ProjectTable: {
				Name: ProjectTable,
				Indexes: map[string]*memdb.IndexSchema{
					PK:     stringIndex(PK, "ID", true),
					byArea: stringIndex(byArea, "BusinessAreaID", false),
				},
			},
			EndorsementTable: {
				Name: EndorsementTable,
				Indexes: map[string]*memdb.IndexSchema{
					PK: stringIndex(PK, "DocumentID", true),
				},
			},
			ReportDetailTable: {
				Name: ReportDetailTable,
				Indexes: map[string]*memdb.IndexSchema{
					PK: stringIndex(PK, "DocumentID", true),
				},
			},
			AnnualReportTable: {
				Name: AnnualReportTable,
				Indexes: map[string]*memdb.IndexSchema{
					PK: stringIndex(PK, "ID", true),
				},
			},
			UserTable: {
				Name: UserTable,
				Indexes: map[string]*memdb.IndexSchema{
					PK:      stringIndex(PK, "ID", true),
					byToken: stringIndex(byToken, "TokenHash", false),
				},
			},
			AreaTable: {
				Name: AreaTable,
				Indexes: map[string]*memdb.IndexSchema{
					PK:       stringIndex(PK, "ID", true),
					byLeader: stringIndex(byLeader, "LeaderID", false),
				},
			},
			MemberTable: {
				Name: MemberTable,
				Indexes: map[string]*memdb.IndexSchema{
					PK: {
						Name:   PK,
						Unique: true,
						Indexer: &memdb.CompoundIndex{
							Indexes: []memdb.Indexer{
								&memdb.StringFieldIndex{Field: "ProjectID"},
								&memdb.StringFieldIndex{Field: "UserID"},
							},
						},
					},
					byProject: stringIndex(byProject, "ProjectID", false),
					byUser:    stringIndex(byUser, "UserID", false),
				},
			},
			EventTable: {
				Name: EventTable,
				Indexes: map[string]*memdb.IndexSchema{
					PK: {
						Name:    PK,
						Unique:  true,
						Indexer: &memdb.UintFieldIndex{Field: "Seq"},
					},
					byDocument: stringIndex(byDocument, "DocumentID", false),
				},
			},
			IdempotencyTable: {
				Name: IdempotencyTable,
				Indexes: map[string]*memdb.IndexSchema{
					PK: {
						Name:   PK,
						Unique: true,
						Indexer: &memdb.CompoundIndex{
							Indexes: []memdb.Indexer{
								&memdb.StringFieldIndex{Field: "ActorID"},
								&memdb.StringFieldIndex{Field: "IdempotencyKey"},
								&memdb.StringFieldIndex{Field: "Endpoint"},
							},
						},
					},
				},
			},
		},
	}
}
