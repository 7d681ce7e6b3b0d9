package cities

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "agora/pkg/domain-errors"
)

type ImporterSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestImporterSuite(t *testing.T) {
	suite.Run(t, new(ImporterSuite))
}

func (s *ImporterSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *ImporterSuite) TestImportCSV() {
	s.Run("imports known-county rows and derives lookups", func() {
		csv := "County,City\nCluj,Cluj-Napoca\nTimiș,Timișoara\n"
		res, err := ImportCSV(s.ctx, s.store, strings.NewReader(csv), nil)
		s.Require().NoError(err)
		s.Equal(2, res.Imported)
		s.Equal(0, res.SkippedCounties)

		city, err := s.store.FindByName(s.ctx, "Timișoara")
		s.Require().NoError(err)
		s.Equal("Timiș", city.County)
	})

	s.Run("skips unknown counties without failing the run", func() {
		csv := "County,City\nAtlantis,Lost City\nCluj,Dej\n"
		res, err := ImportCSV(s.ctx, s.store, strings.NewReader(csv), nil)
		s.Require().NoError(err)
		s.Equal(1, res.Imported)
		s.Equal(1, res.SkippedCounties)
	})

	s.Run("trims whitespace around fields", func() {
		csv := "County,City\n Cluj , Turda \n"
		res, err := ImportCSV(s.ctx, s.store, strings.NewReader(csv), nil)
		s.Require().NoError(err)
		s.Equal(1, res.Imported)

		city, err := s.store.FindByName(s.ctx, "Turda")
		s.Require().NoError(err)
		s.Equal("Cluj", city.County)
	})

	s.Run("aborts on a malformed row", func() {
		csv := "County,City\nCluj,Dej,extra-column\n"
		_, err := ImportCSV(s.ctx, s.store, strings.NewReader(csv), nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("aborts on an empty field", func() {
		csv := "County,City\nCluj,\n"
		_, err := ImportCSV(s.ctx, s.store, strings.NewReader(csv), nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("re-import upserts rather than duplicates", func() {
		csv := "County,City\nCluj,Cluj-Napoca\n"
		_, err := ImportCSV(s.ctx, s.store, strings.NewReader(csv), nil)
		s.Require().NoError(err)
		_, err = ImportCSV(s.ctx, s.store, strings.NewReader(csv), nil)
		s.Require().NoError(err)

		// Everything the method imported so far: Cluj-Napoca, Timișoara,
		// Dej and Turda, with Cluj-Napoca upserted once.
		n, err := s.store.Count(s.ctx)
		s.Require().NoError(err)
		s.Equal(4, n)
	})
}
