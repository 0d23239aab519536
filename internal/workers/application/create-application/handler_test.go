package createapplication

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financing-portal/internal/common/camunda"
	apperrors "financing-portal/internal/common/errors"
	"financing-portal/internal/common/logger"
	"financing-portal/internal/store"
	"financing-portal/internal/workflow"
)

func createTestInput() *Input {
	return &Input{
		ActorID:              "cust-1",
		ActorRole:            "CUSTOMER",
		Type:                 "LEASING",
		ContactEmail:         "maija@yritys.fi",
		ContactPerson:        "Maija Meikäläinen",
		CompanyName:          "Yritys Oy",
		BusinessID:           "1234567-8",
		EquipmentDescription: "Kaivinkone Volvo EC220E",
		EquipmentPrice:       185000,
	}
}

func TestHandler_Execute_PersistsDraft(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO applications`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "reference_number", "type", "status", "customer_id", "contact_email", "company_name", "created_at",
		}).AddRow(
			[]byte("9a4c1f0e-3b7d-4c55-9e0f-1f2d3c4b5a69"), "JR-20260302-a1b2c3", "LEASING", "DRAFT", "cust-1",
			"maija@yritys.fi", "Yritys Oy", time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		))

	log := logger.NewTestLogger(t)
	engine := workflow.NewEngine(store.NewPostgresStore(db), nil, nil, log)
	handler := NewHandler(DefaultConfig(), engine, log)

	output, err := handler.Execute(context.Background(), createTestInput())
	require.NoError(t, err)
	assert.Equal(t, "9a4c1f0e-3b7d-4c55-9e0f-1f2d3c4b5a69", output.ApplicationID)
	assert.Equal(t, "JR-20260302-a1b2c3", output.ReferenceNumber)
	assert.Equal(t, "DRAFT", output.ApplicationStatus)
	assert.Equal(t, "cust-1", output.CustomerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_InsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO applications`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "applications_reference_number_key"})

	log := logger.NewTestLogger(t)
	handler := NewHandler(DefaultConfig(), workflow.NewEngine(store.NewPostgresStore(db), nil, nil, log), log)

	_, err = handler.Execute(context.Background(), createTestInput())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeDatabaseInsertFailed, apperrors.CodeOf(err))
	assert.Equal(t, 3, apperrors.GetRetryCount(apperrors.CodeOf(err)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_SubmitOnBehalfIsRejected(t *testing.T) {
	log := logger.NewTestLogger(t)
	handler := NewHandler(DefaultConfig(), workflow.NewEngine(store.NewMemoryStore(), nil, nil, log), log)

	input := createTestInput()
	input.ActorID, input.ActorRole = "admin-1", "ADMIN"
	input.Submit = true

	_, err := handler.Execute(context.Background(), input)
	assert.ErrorIs(t, err, apperrors.ErrRoleNotPermitted)
}

func TestInputSchema(t *testing.T) {
	tests := []struct {
		name      string
		variables string
		wantError bool
	}{
		{
			name:      "valid draft",
			variables: `{"actorId":"cust-1","actorRole":"CUSTOMER","type":"LEASING","contactEmail":"maija@yritys.fi","companyName":"Yritys Oy","processVar":1}`,
		},
		{
			name:      "missing company",
			variables: `{"actorId":"cust-1","actorRole":"CUSTOMER","type":"LEASING","contactEmail":"maija@yritys.fi"}`,
			wantError: true,
		},
		{
			name:      "unknown product",
			variables: `{"actorId":"cust-1","actorRole":"CUSTOMER","type":"LOAN","contactEmail":"maija@yritys.fi","companyName":"Yritys Oy"}`,
			wantError: true,
		},
		{
			name:      "financier cannot create",
			variables: `{"actorId":"fin-1","actorRole":"FINANCIER","type":"LEASING","contactEmail":"maija@yritys.fi","companyName":"Yritys Oy"}`,
			wantError: true,
		},
		{
			name:      "malformed business id",
			variables: `{"actorId":"cust-1","actorRole":"CUSTOMER","type":"LEASING","contactEmail":"maija@yritys.fi","companyName":"Yritys Oy","businessId":"12345678"}`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 1, Variables: tt.variables}}
			var input Input
			err := camunda.DecodeVariables(job, GetInputSchema(), &input)
			if tt.wantError {
				assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Yritys Oy", input.CompanyName)
		})
	}
}
