package shared

import "fmt"

// ReconcileLockKey is the redis key guarding stock reconciliation runs.
const ReconcileLockKey = "mandi:stock:reconcile:lock"

// VehicleStockKey builds the identifier of a (vehicle, product) inventory pair.
func VehicleStockKey(vehicleID, productID int64) string {
	return fmt.Sprintf("vehicle:%d:product:%d", vehicleID, productID)
}
