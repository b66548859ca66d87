package worksheet

import (
	"testing"

	"order-workflow/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func confirmed(clientID uuid.UUID, lines ...models.OrderLine) models.Order {
	return models.Order{
		ID:       uuid.New(),
		ClientID: clientID,
		State:    models.StateConfirmed,
		Lines:    lines,
	}
}

func TestBuildGroupsByProduct(t *testing.T) {
	productA := uuid.New()
	productB := uuid.New()
	clientX := uuid.New()
	clientY := uuid.New()

	orders := []models.Order{
		confirmed(clientX,
			models.OrderLine{ProductID: productA, Quantity: 5},
			models.OrderLine{ProductID: productB, Quantity: 3},
		),
		confirmed(clientY,
			models.OrderLine{ProductID: productA, Quantity: 2},
		),
	}

	entries := Build(orders)
	require.Len(t, entries, 2)

	byProduct := make(map[uuid.UUID]models.WorksheetEntry)
	for _, entry := range entries {
		byProduct[entry.ProductID] = entry
	}

	assert.Equal(t, 7, byProduct[productA].TotalQuantity)
	assert.Equal(t, 5, byProduct[productA].PerClient[clientX])
	assert.Equal(t, 2, byProduct[productA].PerClient[clientY])

	assert.Equal(t, 3, byProduct[productB].TotalQuantity)
	assert.Equal(t, 3, byProduct[productB].PerClient[clientX])
}

func TestBuildIgnoresNonConfirmedOrders(t *testing.T) {
	product := uuid.New()
	clientX := uuid.New()

	orders := []models.Order{
		confirmed(clientX, models.OrderLine{ProductID: product, Quantity: 4}),
	}
	for _, state := range []models.State{
		models.StatePlaced, models.StatePriced, models.StateAssigned,
		models.StateAwaitingReceipt, models.StateCompleted, models.StateCancelled,
	} {
		order := confirmed(clientX, models.OrderLine{ProductID: product, Quantity: 100})
		order.State = state
		orders = append(orders, order)
	}

	entries := Build(orders)
	require.Len(t, entries, 1)
	assert.Equal(t, 4, entries[0].TotalQuantity)
}

func TestBuildEmpty(t *testing.T) {
	assert.Empty(t, Build(nil))
	assert.Empty(t, Build([]models.Order{}))
}

func TestBuildDeterministicOrder(t *testing.T) {
	clientX := uuid.New()
	var orders []models.Order
	for i := 0; i < 10; i++ {
		orders = append(orders, confirmed(clientX, models.OrderLine{ProductID: uuid.New(), Quantity: 1}))
	}

	first := Build(orders)
	second := Build(orders)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ProductID, second[i].ProductID)
	}
}
