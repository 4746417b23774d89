package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/opscart/cloud-cost-optimizer/pkg/models"
)

// AzureProvider implements Azure pricing
type AzureProvider struct {
	region     string
	cache      *PriceCache
	httpClient *http.Client
}

// Azure Retail Prices API
const azurePricingAPI = "https://prices.azure.com/api/retail/prices"

type azurePriceResponse struct {
	Items []azurePriceItem `json:"Items"`
}

type azurePriceItem struct {
	CurrencyCode  string  `json:"currencyCode"`
	RetailPrice   float64 `json:"retailPrice"`
	UnitOfMeasure string  `json:"unitOfMeasure"`
	ServiceName   string  `json:"serviceName"`
	ProductName   string  `json:"productName"`
	SkuName       string  `json:"skuName"`
	ArmRegionName string  `json:"armRegionName"`
}

func NewAzureProvider(region string) *AzureProvider {
	return &AzureProvider{
		region: region,
		cache:  NewPriceCache(24 * time.Hour),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (a *AzureProvider) Name() string {
	return "azure"
}

func (a *AzureProvider) PriceTable(ctx context.Context) (*models.PriceTable, error) {
	cacheKey := "azure-" + a.region
	if cached := a.cache.Get(cacheKey); cached != nil {
		return cached, nil
	}

	table, err := a.fetchAzurePricing(ctx)
	if err != nil {
		// Fallback to defaults if API fails
		return a.defaultPriceTable(), nil
	}

	a.cache.Set(cacheKey, table)
	return table, nil
}

func (a *AzureProvider) fetchAzurePricing(ctx context.Context) (*models.PriceTable, error) {
	// Filter: serviceName eq 'Virtual Machines' and armRegionName eq 'eastus'
	filter := fmt.Sprintf("serviceName eq 'Virtual Machines' and armRegionName eq '%s' and priceType eq 'Consumption'", a.region)
	url := fmt.Sprintf("%s?$filter=%s", azurePricingAPI, filter)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("azure pricing API returned status %d", resp.StatusCode)
	}

	var priceResp azurePriceResponse
	if err := json.NewDecoder(resp.Body).Decode(&priceResp); err != nil {
		return nil, err
	}

	return a.tableFromRetailPrices(priceResp.Items), nil
}

func (a *AzureProvider) tableFromRetailPrices(items []azurePriceItem) *models.PriceTable {
	if len(items) == 0 {
		return a.defaultPriceTable()
	}

	// The retail API returns per-hour VM prices; average the compute SKUs
	// and keep list prices for everything the API does not cover.
	var sum float64
	var count int
	for _, item := range items {
		if item.RetailPrice <= 0 || item.UnitOfMeasure != "1 Hour" {
			continue
		}
		sum += item.RetailPrice
		count++
	}

	table := a.defaultPriceTable()
	if count > 0 {
		table.ComputeInstanceMonthly = sum / float64(count) * 730
	}
	return table
}

func (a *AzureProvider) defaultPriceTable() *models.PriceTable {
	// eastus list prices, monthly at 730 hours.
	return &models.PriceTable{
		Provider:               "azure",
		Region:                 a.region,
		Currency:               "USD",
		ComputeInstanceMonthly: 70.08,  // D2s_v3 $0.096/hr
		ManagedDatabaseMonthly: 135.05, // SQL GP_Gen5_2 $0.185/hr
		WarehouseMonthly:       219.00, // Synapse DW100c $0.30/hr
		StaticIPMonthly:        3.65,   // static public IP $0.005/hr
		NATGatewayMonthly:      32.85,  // $0.045/hr
		LoadBalancerMonthly:    18.25,  // standard LB $0.025/hr
		FunctionMonthly:        5.00,
		VolumeGBMonthly: map[string]float64{
			"premium_ssd":  0.135,
			"standard_ssd": 0.075,
			"standard_hdd": 0.040,
		},
		SnapshotGBMonthly:     0.050,
		BucketGBMonthly:       0.018,
		VolumeMigrationTarget: "standard_ssd",
		LastUpdated:           time.Now(),
	}
}
