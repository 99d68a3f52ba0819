package registry

const (
	usdcEthereum = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	usdcBase     = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
	usdcArbitrum = "0xaf88d065e77c8cC2239327C5EDb3A432268e5831"
	usdcOptimism = "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85"
	usdcPolygon  = "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359"
	daiEthereum  = "0x6B175474E89094C44Da98b954EedeAC495271d0F"
	stETH        = "0xae7ab96520DE3A18E5e111B5EaAb095312D7fE84"

	aaveV3PoolEthereum = "0x87870Bca3F3fD6335C3F4ce8392D69350B4fA4E2"
	aaveV3PoolBase     = "0xA238Dd80C259a72e81d7e4664a9801593F98d1c5"
	aaveV3PoolL2       = "0x794a61358D6845594F94dc1DB02A252b5b4814aD"
)

var deployments = []Deployment{
	// Wrapped native: deposit() with value = amount.
	{ProtocolID: "weth", ChainID: 1, Family: FamilyWrap, DepositContract: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", DepositFunction: "deposit()", InputToken: NativeTokenAddress, InputTokenSymbol: "ETH", InputDecimals: 18, OutputToken: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", OutputTokenSymbol: "WETH", GasLimit: 60_000},
	{ProtocolID: "weth", ChainID: 10, Family: FamilyWrap, DepositContract: "0x4200000000000000000000000000000000000006", DepositFunction: "deposit()", InputToken: NativeTokenAddress, InputTokenSymbol: "ETH", InputDecimals: 18, OutputToken: "0x4200000000000000000000000000000000000006", OutputTokenSymbol: "WETH", GasLimit: 60_000},
	{ProtocolID: "weth", ChainID: 8453, Family: FamilyWrap, DepositContract: "0x4200000000000000000000000000000000000006", DepositFunction: "deposit()", InputToken: NativeTokenAddress, InputTokenSymbol: "ETH", InputDecimals: 18, OutputToken: "0x4200000000000000000000000000000000000006", OutputTokenSymbol: "WETH", GasLimit: 60_000},
	{ProtocolID: "weth", ChainID: 42161, Family: FamilyWrap, DepositContract: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1", DepositFunction: "deposit()", InputToken: NativeTokenAddress, InputTokenSymbol: "ETH", InputDecimals: 18, OutputToken: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1", OutputTokenSymbol: "WETH", GasLimit: 60_000},

	// Aave v3 and its forks share supply(asset, amount, onBehalfOf, referralCode).
	{ProtocolID: "aave-v3", ChainID: 1, Family: FamilyLending, DepositContract: aaveV3PoolEthereum, DepositFunction: "supply(address,uint256,address,uint16)", InputToken: usdcEthereum, InputTokenSymbol: "USDC", InputDecimals: 6, OutputToken: "0x98C23E9d8f34FEFb1B7BD6a91B7FF122F4e16F5c", OutputTokenSymbol: "aEthUSDC", GasLimit: 300_000, RequiresApproval: true},
	{ProtocolID: "aave-v3", ChainID: 10, Family: FamilyLending, DepositContract: aaveV3PoolL2, DepositFunction: "supply(address,uint256,address,uint16)", InputToken: usdcOptimism, InputTokenSymbol: "USDC", InputDecimals: 6, OutputToken: "0x38d693cE1dF5AaDF7bC62595A37D667aD57922e5", OutputTokenSymbol: "aOptUSDCn", GasLimit: 300_000, RequiresApproval: true},
	{ProtocolID: "aave-v3", ChainID: 137, Family: FamilyLending, DepositContract: aaveV3PoolL2, DepositFunction: "supply(address,uint256,address,uint16)", InputToken: usdcPolygon, InputTokenSymbol: "USDC", InputDecimals: 6, OutputToken: "0xA4D94019934D8333Ef880ABFFbF2FDd611C762BD", OutputTokenSymbol: "aPolUSDCn", GasLimit: 300_000, RequiresApproval: true},
	{ProtocolID: "aave-v3", ChainID: 8453, Family: FamilyLending, DepositContract: aaveV3PoolBase, DepositFunction: "supply(address,uint256,address,uint16)", InputToken: usdcBase, InputTokenSymbol: "USDC", InputDecimals: 6, OutputToken: "0x4e65fE4DbA92790696d040ac24Aa414708F5c0AB", OutputTokenSymbol: "aBasUSDC", GasLimit: 300_000, RequiresApproval: true},
	{ProtocolID: "aave-v3", ChainID: 42161, Family: FamilyLending, DepositContract: aaveV3PoolL2, DepositFunction: "supply(address,uint256,address,uint16)", InputToken: usdcArbitrum, InputTokenSymbol: "USDC", InputDecimals: 6, OutputToken: "0x724dc807b04555b71ed48a6896b6F41593b8C637", OutputTokenSymbol: "aArbUSDCn", GasLimit: 300_000, RequiresApproval: true},
	{ProtocolID: "spark", ChainID: 1, Family: FamilyLending, DepositContract: "0xC13e21B648A5Ee794902342038FF3aDAB66BE987", DepositFunction: "supply(address,uint256,address,uint16)", InputToken: daiEthereum, InputTokenSymbol: "DAI", InputDecimals: 18, OutputToken: "0x4DEDf26112B3Ec8eC46e7E31EA5e123490B05B8B", OutputTokenSymbol: "spDAI", GasLimit: 300_000, RequiresApproval: true},
	{ProtocolID: "seamless", ChainID: 8453, Family: FamilyLending, DepositContract: "0x8F44Fd754285aa6A2b8B9B97739B79746e0475a7", DepositFunction: "supply(address,uint256,address,uint16)", InputToken: usdcBase, InputTokenSymbol: "USDC", InputDecimals: 6, OutputToken: "0x53E240C0F985175dA046A62F26D490d1E259036e", OutputTokenSymbol: "sUSDC", GasLimit: 300_000, RequiresApproval: true},

	// ERC-4626 vaults: deposit(assets, receiver).
	{ProtocolID: "morpho-steakhouse-usdc", ChainID: 1, Family: FamilyVault, DepositContract: "0xBEEF01735c132Ada46AA9aA4c54623cAA92A64CB", DepositFunction: "deposit(uint256,address)", InputToken: usdcEthereum, InputTokenSymbol: "USDC", InputDecimals: 6, OutputToken: "0xBEEF01735c132Ada46AA9aA4c54623cAA92A64CB", OutputTokenSymbol: "steakUSDC", GasLimit: 350_000, RequiresApproval: true},
	{ProtocolID: "morpho-moonwell-usdc", ChainID: 8453, Family: FamilyVault, DepositContract: "0xc1256Ae5FF1cf2719D4937adb3bbCCab2E00A2Ca", DepositFunction: "deposit(uint256,address)", InputToken: usdcBase, InputTokenSymbol: "USDC", InputDecimals: 6, OutputToken: "0xc1256Ae5FF1cf2719D4937adb3bbCCab2E00A2Ca", OutputTokenSymbol: "mwUSDC", GasLimit: 350_000, RequiresApproval: true},
	{ProtocolID: "sdai", ChainID: 1, Family: FamilyVault, DepositContract: "0x83F20F44975D03b1b09e64809B757c47f942BEeA", DepositFunction: "deposit(uint256,address)", InputToken: daiEthereum, InputTokenSymbol: "DAI", InputDecimals: 18, OutputToken: "0x83F20F44975D03b1b09e64809B757c47f942BEeA", OutputTokenSymbol: "sDAI", GasLimit: 200_000, RequiresApproval: true},

	// Compound v3 markets keep balances on the Comet ledger: supply(asset, amount).
	{ProtocolID: "compound-v3", ChainID: 1, Family: FamilyLedger, DepositContract: "0xc3d688B66703497DAA19211EEdff47f25384cdc3", DepositFunction: "supply(address,uint256)", InputToken: usdcEthereum, InputTokenSymbol: "USDC", InputDecimals: 6, OutputToken: "0xc3d688B66703497DAA19211EEdff47f25384cdc3", OutputTokenSymbol: "cUSDCv3", GasLimit: 200_000, RequiresApproval: true},
	{ProtocolID: "compound-v3", ChainID: 8453, Family: FamilyLedger, DepositContract: "0xb125E6687d4313864e53df431d5425969c15Eb2F", DepositFunction: "supply(address,uint256)", InputToken: usdcBase, InputTokenSymbol: "USDC", InputDecimals: 6, OutputToken: "0xb125E6687d4313864e53df431d5425969c15Eb2F", OutputTokenSymbol: "cUSDCv3", GasLimit: 200_000, RequiresApproval: true},
	{ProtocolID: "compound-v3", ChainID: 42161, Family: FamilyLedger, DepositContract: "0x9c4ec768c28520B50860ea7a15bd7213a9fF58bf", DepositFunction: "supply(address,uint256)", InputToken: usdcArbitrum, InputTokenSymbol: "USDC", InputDecimals: 6, OutputToken: "0x9c4ec768c28520B50860ea7a15bd7213a9fF58bf", OutputTokenSymbol: "cUSDCv3", GasLimit: 200_000, RequiresApproval: true},

	// Compound v2 style cTokens: mint(amount).
	{ProtocolID: "moonwell", ChainID: 8453, Family: FamilyMint, DepositContract: "0xEdc817A28E8B93B03976FBd4a3dDBc9f7D176c22", DepositFunction: "mint(uint256)", InputToken: usdcBase, InputTokenSymbol: "USDC", InputDecimals: 6, OutputToken: "0xEdc817A28E8B93B03976FBd4a3dDBc9f7D176c22", OutputTokenSymbol: "mUSDC", GasLimit: 300_000, RequiresApproval: true},

	// Liquid staking wrappers: wrap(amount).
	{ProtocolID: "lido-wsteth", ChainID: 1, Family: FamilyLiquidStaking, DepositContract: "0x7f39C581F595B53c5cb19bD0b3f8dA6c935E2Ca0", DepositFunction: "wrap(uint256)", InputToken: stETH, InputTokenSymbol: "stETH", InputDecimals: 18, OutputToken: "0x7f39C581F595B53c5cb19bD0b3f8dA6c935E2Ca0", OutputTokenSymbol: "wstETH", GasLimit: 150_000, RequiresApproval: true},
}
