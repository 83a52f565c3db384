package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveReservation(t *testing.T) {
	successBefore := testutil.ToFloat64(reservationsTotal.WithLabelValues(ResultSuccess))
	failureBefore := testutil.ToFloat64(reservationsTotal.WithLabelValues(ResultFailure))
	unitsBefore := testutil.ToFloat64(reservedUnits)

	ObserveReservation(nil, 15)
	ObserveReservation(errors.New("insufficient"), 25)

	assert.Equal(t, successBefore+1, testutil.ToFloat64(reservationsTotal.WithLabelValues(ResultSuccess)))
	assert.Equal(t, failureBefore+1, testutil.ToFloat64(reservationsTotal.WithLabelValues(ResultFailure)))
	assert.Equal(t, unitsBefore+15, testutil.ToFloat64(reservedUnits), "failed reservations hold no units")
}

func TestObserveTransition(t *testing.T) {
	before := testutil.ToFloat64(orderTransitionsTotal.WithLabelValues("cancel", ResultFailure))

	ObserveTransition("cancel", errors.New("invalid transition"))

	assert.Equal(t, before+1, testutil.ToFloat64(orderTransitionsTotal.WithLabelValues("cancel", ResultFailure)))
}
