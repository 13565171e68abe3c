package services_test

import (
	"context"
	"strings"
	"testing"

	"agromarket/internal/models"
	"agromarket/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const clientsCSV = `Company_Name,CNPJ,Email,Phone,City,State
Fazenda Boa Vista,11.222.333/0001-81,compras@boavista.com.br,(65) 99988-7766,Sorriso,MT
Agro Serra,45.372.568/0001-71,,6533221100,Sinop,mt
Sem Documento,11.111.111/1111-11,x@y.com,65999887766,Lucas,MT
Duplicada,11222333000181,dup@boavista.com.br,65999887766,Sorriso,MT
Telefone Ruim,12.345.678/0001-95,ok@ok.com,123,Cuiabá,XX
`

func TestImportService_ParseClients_Counts(t *testing.T) {
	svc := services.NewImportService(new(MockClientRepository), new(MockCommissionRepository))

	report, err := svc.ParseClients(strings.NewReader(clientsCSV), "rep-1")
	require.NoError(t, err)

	assert.Equal(t, 5, report.Total)
	assert.Equal(t, 2, report.Valid)
	assert.Equal(t, 3, report.Invalid)
	assert.Equal(t, report.Total, report.Valid+report.Invalid)

	rows := report.Rows
	require.Len(t, rows, 5)
	assert.Equal(t, 2, rows[0].Line)
	assert.True(t, rows[0].Valid())
	assert.Equal(t, "11222333000181", rows[0].Client.CNPJ)
	assert.Equal(t, "rep-1", rows[0].Client.RepresentativeID)
	assert.Equal(t, "MT", rows[1].Client.State)

	assert.Contains(t, rows[2].Errors, "cnpj")
	assert.Equal(t, "duplicate of line 2", rows[3].Errors["cnpj"])
	assert.Contains(t, rows[4].Errors, "phone")
	assert.Contains(t, rows[4].Errors, "state")
}

func TestImportService_ParseClients_SemicolonDelimiter(t *testing.T) {
	svc := services.NewImportService(new(MockClientRepository), new(MockCommissionRepository))
	csv := "state;city;phone;email;cnpj;company_name\r\nMT;Sorriso;65999887766;;11222333000181;Fazenda Boa Vista\r\n"

	report, err := svc.ParseClients(strings.NewReader(csv), "rep-1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Valid)
	assert.Equal(t, "Fazenda Boa Vista", report.Rows[0].Client.CompanyName)
}

func TestImportService_ParseClients_BadHeader(t *testing.T) {
	svc := services.NewImportService(new(MockClientRepository), new(MockCommissionRepository))

	_, err := svc.ParseClients(strings.NewReader("name,cnpj\nA,11222333000181\n"), "rep-1")
	assert.ErrorIs(t, err, services.ErrInvalidImport)
	assert.Contains(t, err.Error(), "company_name")

	_, err = svc.ParseClients(strings.NewReader(""), "rep-1")
	assert.ErrorIs(t, err, services.ErrInvalidImport)
}

func TestImportService_ImportClients(t *testing.T) {
	clients := new(MockClientRepository)
	svc := services.NewImportService(clients, new(MockCommissionRepository))
	ctx := context.Background()

	// Dry run never writes
	report, err := svc.ImportClients(ctx, strings.NewReader(clientsCSV), "rep-1", true)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Zero(t, report.Inserted)
	clients.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)

	clients.On("CreateBatch", ctx, mock.MatchedBy(func(cs []models.Client) bool {
		return len(cs) == 2
	})).Return(1, nil).Once()
	report, err = svc.ImportClients(ctx, strings.NewReader(clientsCSV), "rep-1", false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 2, report.Valid)
	clients.AssertExpectations(t)

	_, err = svc.ImportClients(ctx, strings.NewReader(clientsCSV), "", false)
	assert.ErrorIs(t, err, services.ErrInvalidImport)
}
